// Package poll carries the pattern shared by every provider client: merge
// caller parameters with injected credentials, resolve the operation from
// the reserved "function" field, derive a cache key, and drive the outbound
// HTTP call through the rate limiter with uniform error classification.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"resty.dev/v3"

	"newsfetcher/internal/cache"
	"newsfetcher/internal/config"
	"newsfetcher/internal/fetcher"
	"newsfetcher/internal/ratelimit"
)

// FunctionField is the reserved parameter naming the operation to run. It is
// stripped from the outbound query so it is never sent upstream.
const FunctionField = "function"

// State is the long-lived process state shared by reference across all
// concurrently handled connections: the HTTP client, the response cache, the
// rate limiter, and static configuration. No handler owns it exclusively.
type State struct {
	Client  *resty.Client
	Cache   cache.Store
	Limiter *ratelimit.Limiter
	Config  *config.Config
}

// NewState builds the shared state from configuration.
func NewState(cfg *config.Config) *State {
	return &State{
		Client:  fetcher.NewHTTPClient(0),
		Cache:   cache.NewRWCache(cfg.Task.CacheCapacity),
		Limiter: ratelimit.GetLimiter(),
		Config:  cfg,
	}
}

// RetryConfig exposes the configured retry bounds.
func (s *State) RetryConfig() fetcher.RetryConfig {
	return fetcher.RetryConfig{
		MaxAttempts: s.Config.Task.MaxRetries,
		BaseDelay:   s.Config.Task.BaseDelay(),
		MaxDelay:    s.Config.Task.MaxDelay(),
	}
}

// ParseParams flattens a raw JSON parameter object into string form. String
// values pass through, numbers and booleans are formatted, and nested
// structures are skipped: upstream query strings are flat by nature.
func ParseParams(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("parameters are not a JSON object: %w", err)
	}
	params := make(map[string]string, len(obj))
	for k, v := range obj {
		switch val := v.(type) {
		case string:
			params[k] = val
		case float64:
			params[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			params[k] = strconv.FormatBool(val)
		}
	}
	return params, nil
}

// Operation extracts and removes the reserved routing field from params.
func Operation(params map[string]string) (string, error) {
	op, ok := params[FunctionField]
	if !ok || op == "" {
		return "", fetcher.NewNoEndpointError()
	}
	delete(params, FunctionField)
	return op, nil
}

// CacheKey derives a deterministic key from the operation identity, the
// endpoint, and the remaining parameters. Parameter order never changes the
// key.
func CacheKey(op, endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(op)
	b.WriteByte('|')
	b.WriteString(endpoint)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// GetJSON performs one rate-limited HTTP GET against url and returns the raw
// response body. Non-200 statuses and transport failures are classified into
// the fetcher error kinds.
func (s *State) GetJSON(ctx context.Context, api ratelimit.API, url string, params map[string]string) (json.RawMessage, error) {
	if err := s.Limiter.Wait(ctx, api); err != nil {
		return nil, fetcher.NewNetworkError(err)
	}

	slog.Debug("outbound GET", "api", string(api), "url", url)
	resp, err := s.Client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(url)
	if err != nil {
		// Timeouts, refused connections, DNS failures, and cancellations all
		// surface here; the request never produced a status to classify.
		return nil, fetcher.NewNetworkError(err)
	}

	body := resp.Bytes()
	if resp.StatusCode() != 200 {
		return nil, fetcher.ClassifyHTTPError(resp.StatusCode(), string(body))
	}

	out := make(json.RawMessage, len(body))
	copy(out, body)
	return out, nil
}

// JoinPath joins URL path parts with single slashes, trimming stray ones.
func JoinPath(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		cleaned = append(cleaned, strings.Trim(p, "/"))
	}
	return strings.Join(cleaned, "/")
}
