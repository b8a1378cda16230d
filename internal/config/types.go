package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the top-level catcode configuration. It is passed around by
// value; a change produces a new Config rather than mutating a shared one.
type Config struct {
	Assistant  AssistantConfig  `json:"assistant"`
	Model      ModelConfig      `json:"model"`
	Session    SessionConfig    `json:"session"`
	Capability CapabilityConfig `json:"capability"`
	Journal    JournalConfig    `json:"journal"`
}

// AssistantConfig describes how to reach the assistant service.
type AssistantConfig struct {
	BaseURL string `json:"base_url"`
	Port    int    `json:"port"`
	AuthKey string `json:"auth_key"`
	WSPath  string `json:"ws_path"`
	Secure  bool   `json:"secure"`
	UserID  string `json:"user_id"`
}

// Host returns the bare host name. A scheme or path accidentally included
// in base_url is stripped; an explicit https:// scheme is not treated as
// turning TLS on, that is what the secure flag is for.
func (a AssistantConfig) Host() string {
	raw := strings.TrimSpace(a.BaseURL)
	if raw == "" {
		return "localhost"
	}
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	raw = strings.TrimSuffix(raw, "/")
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.LastIndexByte(raw, ':'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// HTTPBase returns the admin API base URL, e.g. "http://localhost:1865".
func (a AssistantConfig) HTTPBase() string {
	scheme := "http"
	if a.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, a.Host(), a.Port)
}

// WebSocketURL returns the chat endpoint URL, e.g. "ws://localhost:1865/ws".
func (a AssistantConfig) WebSocketURL() string {
	scheme := "ws"
	if a.Secure {
		scheme = "wss"
	}
	path := a.WSPath
	if path == "" {
		path = "/ws"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimSuffix(path, "/")
	if a.UserID != "" {
		path += "/" + url.PathEscape(a.UserID)
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, a.Host(), a.Port, path)
}

// ModelConfig selects the language model the assistant service should use.
type ModelConfig struct {
	// ConfigKind is the assistant's configuration kind, e.g. "LLMOpenAIChatConfig".
	ConfigKind string `json:"config_kind"`
	// Name is the selected model identifier, e.g. "gpt-4o" or "openai/gpt-4o".
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// CanSync reports whether enough is configured to push the model
// selection to the assistant service.
func (m ModelConfig) CanSync() bool {
	return m.ConfigKind != "" && m.Name != "" && m.APIKey != ""
}

// SessionConfig controls connection retries and request waiting.
type SessionConfig struct {
	MaxRetries     int    `json:"max_retries"`
	RetryDelay     string `json:"retry_delay"`
	RetryBackoff   string `json:"retry_backoff"`
	RequestTimeout string `json:"request_timeout"`
	WaitNotice     string `json:"wait_notice"`
}

// ParseRetryDelay returns the delay between connection attempts.
func (s SessionConfig) ParseRetryDelay() time.Duration {
	return parseDuration(s.RetryDelay, 0)
}

// ParseRequestTimeout returns the per-request timeout; zero means none.
func (s SessionConfig) ParseRequestTimeout() time.Duration {
	return parseDuration(s.RequestTimeout, 0)
}

// ParseWaitNotice returns the interval between "still waiting" notices.
func (s SessionConfig) ParseWaitNotice() time.Duration {
	return parseDuration(s.WaitNotice, 10*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// CapabilityConfig configures the capability gate.
type CapabilityConfig struct {
	PluginID string       `json:"plugin_id"`
	Rules    []RuleConfig `json:"rules,omitempty"`
}

// RuleConfig adds a compatibility rule on top of the built-in table.
type RuleConfig struct {
	ConfigKind    string   `json:"config_kind"`
	ModelPrefixes []string `json:"model_prefixes"`
	Tasks         []string `json:"tasks"`
}

// JournalConfig controls the local audit log of command outcomes.
type JournalConfig struct {
	Enabled *bool  `json:"enabled"`
	Path    string `json:"path"`
}

// IsEnabled returns whether the journal is enabled. Defaults to true.
func (j JournalConfig) IsEnabled() bool {
	if j.Enabled == nil {
		return true
	}
	return *j.Enabled
}

func boolPtr(b bool) *bool {
	return &b
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Assistant: AssistantConfig{
			BaseURL: "localhost",
			Port:    1865,
			WSPath:  "/ws",
		},
		Session: SessionConfig{
			MaxRetries:     3,
			RetryDelay:     "0s",
			RetryBackoff:   "constant",
			RequestTimeout: "5m",
			WaitNotice:     "10s",
		},
		Capability: CapabilityConfig{
			PluginID: "code_assistant",
		},
		Journal: JournalConfig{
			Enabled: boolPtr(true),
			Path:    "~/.local/share/catcode/journal.db",
		},
	}
}
