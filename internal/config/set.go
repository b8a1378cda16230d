package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"

	"github.com/alanmeadows/catcode/internal/store"
)

// ParseValue converts a command-line value to the JSON type of the config
// field at key. Keys with no typed default fall back to guessing from the
// text.
func ParseValue(key, raw string) (any, error) {
	defaults, err := json.Marshal(DefaultConfig())
	if err != nil {
		return nil, err
	}

	switch field := gjson.GetBytes(defaults, key); field.Type {
	case gjson.String:
		return raw, nil
	case gjson.True, gjson.False:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects true or false, got %q", key, raw)
		}
		return b, nil
	case gjson.Number:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s expects an integer, got %q", key, raw)
		}
		return n, nil
	case gjson.JSON:
		return nil, fmt.Errorf("%s is a section, set one of its fields or edit the file", key)
	}
	return guessValue(raw), nil
}

// guessValue types raw as a bool, then an integer, then a float, then a
// string.
func guessValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// SetValues writes dotted-key values into the JSONC file at path, creating
// it if needed. The file is locked for the duration of the update so a
// concurrent watcher never sees a half-written file.
//
// JSONC comments are not preserved on write.
func SetValues(path string, values map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return store.WithLock(context.Background(), path, store.DefaultLockTimeout, func() error {
		existing := []byte("{}")
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			existing = jsonc.ToJSON(data)
		}

		updated := existing
		for key, value := range values {
			var err error
			updated, err = sjson.SetBytes(updated, key, value)
			if err != nil {
				return fmt.Errorf("setting key %q: %w", key, err)
			}
		}

		if err := checkLoadable(updated); err != nil {
			return fmt.Errorf("refusing to write %s: %w", path, err)
		}

		if err := store.AtomicWriteFile(path, updated, 0600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		return nil
	})
}

// checkLoadable reports whether data would load over the defaults.
func checkLoadable(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	cfg := DefaultConfig()
	return mergeIntoConfig(&cfg, m)
}

// Redacted returns a copy of the config with secret fields masked.
func (c Config) Redacted() Config {
	if c.Assistant.AuthKey != "" {
		c.Assistant.AuthKey = "***"
	}
	if c.Model.APIKey != "" {
		c.Model.APIKey = "***"
	}
	return c
}
