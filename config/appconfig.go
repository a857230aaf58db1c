// config/appconfig.go
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// AppKey defines a configuration key for an application.
// Apps register their config keys using this type, and Load handles
// reading them from config files, environment variables, and command-line flags.
type AppKey struct {
	// Name is the key name (e.g., "smtp_host", "recipient_email").
	// This is used as-is for config files and CLI flags.
	// For env vars, it's uppercased and prefixed (e.g., FORMMAIL_SMTP_HOST).
	Name string

	// Default is the default value if not set elsewhere.
	// Supported types: string, int, int64, bool, []string.
	// Durations are declared as strings ("3s") and read with Duration.
	Default any

	// Desc is a short description for --help output.
	Desc string
}

// AppConfigValues holds the loaded app configuration values, keyed by AppKey.Name.
// Values are already coerced to the type of the key's Default.
type AppConfigValues map[string]any

// String returns a string value or empty string if not found/wrong type.
func (a AppConfigValues) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// Int returns an int value or 0 if not found/wrong type.
func (a AppConfigValues) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// Bool returns a bool value or false if not found/wrong type.
func (a AppConfigValues) Bool(key string) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return false
}

// StringSlice returns a []string value or nil if not found/wrong type.
func (a AppConfigValues) StringSlice(key string) []string {
	if v, ok := a[key].([]string); ok {
		return v
	}
	return nil
}

// Duration parses a duration value ("3s", "2h", or plain seconds).
// Returns def if the key is missing, empty or invalid.
func (a AppConfigValues) Duration(key string, def time.Duration) time.Duration {
	dur, err := parseDurationFlexible(a[key], def)
	if err != nil {
		return def
	}
	return dur
}

// loadAppConfig resolves app keys with the same precedence as the core
// config: flags > env > config files > defaults. v already carries the env
// prefix and any merged config files.
func loadAppConfig(logger *zap.Logger, v *viper.Viper, fs *pflag.FlagSet, keys []AppKey) (AppConfigValues, error) {
	result := make(AppConfigValues, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	for _, key := range keys {
		v.SetDefault(key.Name, key.Default)
		_ = v.BindEnv(key.Name)
		if f := fs.Lookup(key.Name); f != nil && f.Changed {
			_ = v.BindPFlag(key.Name, f)
		}
	}

	for _, key := range keys {
		switch key.Default.(type) {
		case string:
			result[key.Name] = v.GetString(key.Name)
		case int:
			result[key.Name] = v.GetInt(key.Name)
		case int64:
			result[key.Name] = v.GetInt64(key.Name)
		case bool:
			result[key.Name] = v.GetBool(key.Name)
		case []string:
			arr, err := toStringSlice(v.Get(key.Name))
			if err != nil {
				return nil, fmt.Errorf("config key %q expects a JSON array string: %w", key.Name, err)
			}
			result[key.Name] = arr
		}
	}

	// Log loaded app config without leaking secrets.
	fields := make([]zap.Field, 0, len(keys))
	for _, key := range keys {
		if isSecretKey(key.Name) {
			fields = append(fields, zap.String(key.Name, "[REDACTED]"))
		} else {
			fields = append(fields, zap.Any(key.Name, result[key.Name]))
		}
	}
	logger.Info("app config loaded", fields...)

	return result, nil
}

func isSecretKey(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "key") ||
		strings.Contains(n, "secret") ||
		strings.Contains(n, "password") ||
		strings.Contains(n, "token")
}

// registerAppFlags registers command-line flags for app config keys.
// Must be called before fs.Parse().
func registerAppFlags(fs *pflag.FlagSet, keys []AppKey) error {
	for _, key := range keys {
		if fs.Lookup(key.Name) != nil {
			return fmt.Errorf("config key %q conflicts with existing flag", key.Name)
		}

		switch d := key.Default.(type) {
		case string:
			fs.String(key.Name, d, key.Desc)
		case int:
			fs.Int(key.Name, d, key.Desc)
		case int64:
			fs.Int64(key.Name, d, key.Desc)
		case bool:
			fs.Bool(key.Name, d, key.Desc)
		case []string:
			fs.String(key.Name, "", key.Desc+" (JSON array)")
		default:
			return fmt.Errorf("config key %q has unsupported default type %T", key.Name, key.Default)
		}
	}
	return nil
}

// parseDurationFlexible accepts "90s"/"2m", numeric seconds, or a time.Duration.
// Returns def on nil/empty; returns def + error on anything unparsable or non-positive.
func parseDurationFlexible(raw any, def time.Duration) (time.Duration, error) {
	var d time.Duration
	switch t := raw.(type) {
	case nil:
		return def, nil
	case time.Duration:
		d = t
	case int:
		d = time.Duration(t) * time.Second
	case int64:
		d = time.Duration(t) * time.Second
	case float64:
		d = time.Duration(t * float64(time.Second))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			// Plain seconds in string form, e.g. "120"
			n, nerr := strconv.ParseInt(s, 10, 64)
			if nerr != nil {
				return def, fmt.Errorf("cannot parse duration %q", s)
			}
			parsed = time.Duration(n) * time.Second
		}
		d = parsed
	default:
		return def, fmt.Errorf("unsupported duration type %T", raw)
	}
	if d <= 0 {
		return def, fmt.Errorf("duration must be >0")
	}
	return d, nil
}
