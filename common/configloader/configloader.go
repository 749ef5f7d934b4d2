// common/configloader/configloader.go
//
// Пакет configloader собирает конфиг сервиса из трёх слоёв:
// дефолты → YAML-файл → ENV (с префиксом), затем декодирует и валидирует.
package configloader

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Validator реализуется целевой структурой, если ей нужна проверка после декодирования.
type Validator interface {
	Validate() error
}

// Loader хранит дефолты одного сервиса. Не потокобезопасен: настраивается при старте.
type Loader struct {
	envPrefix string
	defaults  map[string]any
}

// New; envPrefix: например "REALTIME" → REALTIME_WS_URL для ключа ws.url.
func New(envPrefix string) *Loader {
	return &Loader{envPrefix: envPrefix, defaults: make(map[string]any)}
}

// Default задаёт значение ключа (через точку: "ws.backoff.max_interval").
// ENV перекрывает только ключи, у которых есть дефолт или значение в файле.
func (l *Loader) Default(key string, v any) *Loader {
	l.defaults[key] = v
	return l
}

// Defaults: пакетная версия Default.
func (l *Loader) Defaults(kv map[string]any) *Loader {
	for k, v := range kv {
		l.defaults[k] = v
	}
	return l
}

// Load заполняет target (указатель на структуру с mapstructure-тегами).
// Пустой path: только дефолты и ENV.
func (l *Loader) Load(path string, target any) error {
	v := viper.New()
	for key, val := range l.defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("configloader: read %q: %w", path, err)
		}
	}

	if err := decode(v.AllSettings(), target); err != nil {
		return fmt.Errorf("configloader: decode: %w", err)
	}

	if val, ok := target.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("configloader: invalid config: %w", err)
		}
	}
	return nil
}
