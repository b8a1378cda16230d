package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// Load reads and merges configuration from user-level, repo-level and explicit JSONC files.
// Resolution order: defaults → user config (~/.config/catcode/catcode.jsonc) →
// repo config (.catcode/catcode.jsonc) → overridePath (if non-empty) → .env → environment.
func Load(overridePath string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range Paths(overridePath) {
		m, err := loadJSONC(path)
		if err != nil {
			if os.IsNotExist(err) && path != overridePath {
				continue
			}
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		if err := mergeIntoConfig(&cfg, m); err != nil {
			return nil, fmt.Errorf("merging %s: %w", path, err)
		}
	}

	env := readDotEnv()
	applyEnvOverrides(&cfg, func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return env[key]
	})

	return &cfg, nil
}

// Paths returns the config files consulted by Load, lowest precedence first.
func Paths(overridePath string) []string {
	var paths []string
	if p := UserConfigPath(); p != "" {
		paths = append(paths, p)
	}
	if root := RepoRoot(); root != "" {
		paths = append(paths, RepoConfigPath(root))
	}
	if overridePath != "" {
		paths = append(paths, overridePath)
	}
	return paths
}

// UserConfigPath returns the user-level config file path, or "" if the
// user config directory cannot be determined.
func UserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "catcode", "catcode.jsonc")
}

// RepoConfigPath returns the repository-level config file under root.
func RepoConfigPath(root string) string {
	return filepath.Join(root, ".catcode", "catcode.jsonc")
}

// loadJSONC reads a JSONC file and returns it as a map.
func loadJSONC(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jsonData := jsonc.ToJSON(data)
	var m map[string]any
	if err := json.Unmarshal(jsonData, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return m, nil
}

// mergeIntoConfig marshals the config to a map, deep-merges the source map over it,
// then unmarshals back to the Config struct.
func mergeIntoConfig(cfg *Config, src map[string]any) error {
	cfgBytes, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var dst map[string]any
	if err := json.Unmarshal(cfgBytes, &dst); err != nil {
		return err
	}

	if err := mergo.Merge(&dst, src, mergo.WithOverride); err != nil {
		return err
	}

	merged, err := json.Marshal(dst)
	if err != nil {
		return err
	}
	return json.Unmarshal(merged, cfg)
}

// readDotEnv reads .env from the repo root (or the working directory) without
// touching the process environment.
func readDotEnv() map[string]string {
	dir := RepoRoot()
	if dir == "" {
		dir, _ = os.Getwd()
	}
	env, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil {
		return nil
	}
	return env
}

// RepoRoot finds the git repository root via git rev-parse.
func RepoRoot() string {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if v := getenv("CATCODE_BASE_URL"); v != "" {
		cfg.Assistant.BaseURL = v
	}
	if v := getenv("CATCODE_AUTH_KEY"); v != "" {
		cfg.Assistant.AuthKey = v
	}
	if v := getenv("CATCODE_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
}

// ExpandHome expands a leading "~/" to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
