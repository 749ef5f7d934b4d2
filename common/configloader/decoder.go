package configloader

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

func decode(input map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           target,
		WeaklyTypedInput: false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToSliceHook,
			stringToBoolHook,
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// stringToSliceHook: ENV приходит строкой "a,b,c"; пустая строка → пустой слайс.
func stringToSliceHook(f, t reflect.Kind, data any) (any, error) {
	if f != reflect.String || t != reflect.Slice {
		return data, nil
	}
	s := strings.TrimSpace(data.(string))
	if s == "" {
		return []string{}, nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

func stringToBoolHook(f, t reflect.Kind, data any) (any, error) {
	if f == reflect.String && t == reflect.Bool {
		return strconv.ParseBool(strings.TrimSpace(data.(string)))
	}
	return data, nil
}
