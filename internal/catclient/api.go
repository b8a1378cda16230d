package catclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const apiTimeout = 15 * time.Second

// HTTPClient implements API against the assistant's admin endpoints.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates an admin API client. When authKey is set every
// request carries it as a bearer token.
func NewHTTPClient(ctx context.Context, baseURL, authKey string) *HTTPClient {
	var hc *http.Client
	if authKey != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: authKey})
		hc = oauth2.NewClient(ctx, ts)
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = apiTimeout

	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    hc,
	}
}

// GetLLMSettings queries GET /llm/settings.
func (c *HTTPClient) GetLLMSettings(ctx context.Context) (*LLMSettings, error) {
	var out LLMSettings
	if err := c.do(ctx, http.MethodGet, "/llm/settings", nil, &out); err != nil {
		return nil, fmt.Errorf("getting LLM settings: %w", err)
	}
	return &out, nil
}

// ListPlugins queries GET /plugins.
func (c *HTTPClient) ListPlugins(ctx context.Context) (*PluginList, error) {
	var out PluginList
	if err := c.do(ctx, http.MethodGet, "/plugins", nil, &out); err != nil {
		return nil, fmt.Errorf("listing plugins: %w", err)
	}
	return &out, nil
}

// UpsertLLMSetting issues PUT /llm/settings/{configKind}.
func (c *HTTPClient) UpsertLLMSetting(ctx context.Context, configKind string, value map[string]any) error {
	path := "/llm/settings/" + url.PathEscape(configKind)
	if err := c.do(ctx, http.MethodPut, path, value, nil); err != nil {
		return fmt.Errorf("updating LLM setting %s: %w", configKind, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("assistant API request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
