package configloader

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const redacted = "***"

var secretKeys = []string{"password", "secret", "token"}

// Print пишет конфиг в w как JSON; значения ключей с password/secret/token скрываются.
func Print(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("configloader: marshal: %w", err)
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("configloader: unmarshal: %w", err)
	}
	redact(tree)

	out, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return fmt.Errorf("configloader: marshal: %w", err)
	}
	_, err = fmt.Fprintf(w, "Loaded configuration:\n%s\n", out)
	return err
}

func redact(node any) {
	switch n := node.(type) {
	case map[string]any:
		for k, v := range n {
			if isSecret(k) {
				if s, ok := v.(string); ok && s != "" {
					n[k] = redacted
				}
				continue
			}
			redact(v)
		}
	case []any:
		for _, v := range n {
			redact(v)
		}
	}
}

func isSecret(key string) bool {
	k := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
