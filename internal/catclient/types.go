// Package catclient is the client for the assistant service: a websocket
// chat transport and the HTTP admin API used for capability queries.
package catclient

import (
	"context"
	"fmt"
	"strings"
)

//go:generate mockgen -source=types.go -destination=catclientmock/catclient_mock.go -package=catclientmock

// EventType identifies an event raised by a Transport.
type EventType string

const (
	// EventMessage carries a chat reply or an assistant-side error.
	EventMessage EventType = "message"
	// EventDisconnected is raised when a live connection drops.
	EventDisconnected EventType = "disconnected"
	// EventTransportError reports a problem that did not drop the connection.
	EventTransportError EventType = "transport_error"
)

// Event is raised by a Transport from its read goroutine.
type Event struct {
	Type EventType
	// Content is the reply text for EventMessage.
	Content string
	// IsError is set when the assistant answered with an error frame.
	IsError bool
	// TaskHint echoes the task discriminator when the service includes it.
	TaskHint string
	// Description explains EventDisconnected and EventTransportError.
	Description string
}

// Request is the outgoing chat frame. The memory flags are always sent so
// the assistant neither consults nor stores raw code in its memories.
type Request struct {
	Text                 string `json:"text"`
	UseDeclarativeMemory bool   `json:"use_declarative_memory"`
	UseProceduralMemory  bool   `json:"use_procedural_memory"`
	UseEpisodicMemory    bool   `json:"use_episodic_memory"`
	Task                 string `json:"task"`
}

// Transport is a single websocket chat connection.
type Transport interface {
	// Connect performs one connection attempt.
	Connect(ctx context.Context) error
	// Send writes a request on the live connection.
	Send(ctx context.Context, req Request) error
	// Close tears the connection down. It does not raise EventDisconnected.
	Close() error
	// SetHandler registers the callback that receives every Event.
	SetHandler(fn func(Event))
}

// LLMSetting is one language-model configuration known to the service.
type LLMSetting struct {
	Name  string         `json:"name"`
	Value map[string]any `json:"value"`
}

// LLMSettings is the response of the settings query.
type LLMSettings struct {
	Settings              []LLMSetting `json:"settings"`
	SelectedConfiguration string       `json:"selected_configuration"`
}

// Selected returns the setting named by SelectedConfiguration.
func (s LLMSettings) Selected() (LLMSetting, bool) {
	for _, st := range s.Settings {
		if st.Name == s.SelectedConfiguration {
			return st, true
		}
	}
	return LLMSetting{}, false
}

// ModelName extracts the model identifier from a setting value. Backends
// disagree on the key, so the common ones are tried in order.
func (s LLMSetting) ModelName() string {
	for _, key := range []string{"model_name", "model", "model_id", "deployment_name"} {
		if v, ok := s.Value[key]; ok {
			if name, ok := v.(string); ok && name != "" {
				return name
			}
		}
	}
	return ""
}

// Plugin is an installed server-side extension.
type Plugin struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Active  *bool  `json:"active,omitempty"`
}

// PluginList is the response of the plugin listing.
type PluginList struct {
	Installed []Plugin `json:"installed"`
}

// Has reports whether a plugin with the given id is installed and not
// explicitly deactivated.
func (p PluginList) Has(id string) bool {
	for _, pl := range p.Installed {
		if strings.EqualFold(pl.ID, id) {
			return pl.Active == nil || *pl.Active
		}
	}
	return false
}

// API is the admin surface of the assistant service.
type API interface {
	// GetLLMSettings returns the language-model configurations and the selected one.
	GetLLMSettings(ctx context.Context) (*LLMSettings, error)
	// ListPlugins returns the installed plugins.
	ListPlugins(ctx context.Context) (*PluginList, error)
	// UpsertLLMSetting stores the value for a configuration kind and selects it.
	UpsertLLMSetting(ctx context.Context, configKind string, value map[string]any) error
}

// StatusError is returned by the API client for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}
