package testutil

import (
	"context"

	"github.com/goccy/go-json"

	"newsfetcher/internal/cache"
	"newsfetcher/internal/config"
	"newsfetcher/internal/dispatcher"
	"newsfetcher/internal/fetcher"
	"newsfetcher/internal/poll"
	"newsfetcher/internal/ratelimit"
)

// MockHandler is a mock implementation of the dispatcher.Handler interface
// for testing
type MockHandler struct {
	NameFunc func() string
	PollFunc func(ctx context.Context, st *poll.State, params json.RawMessage) (json.RawMessage, error)
}

// Name implements the Handler interface
func (m *MockHandler) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock_handler"
}

// Poll implements the Handler interface
func (m *MockHandler) Poll(ctx context.Context, st *poll.State, params json.RawMessage) (json.RawMessage, error) {
	if m.PollFunc != nil {
		return m.PollFunc(ctx, st, params)
	}
	return json.RawMessage(`null`), nil
}

// NewMockHandler creates a simple mock handler with predefined values
func NewMockHandler(name string, payload json.RawMessage, err error) dispatcher.Handler {
	return &MockHandler{
		NameFunc: func() string {
			return name
		},
		PollFunc: func(ctx context.Context, st *poll.State, params json.RawMessage) (json.RawMessage, error) {
			return payload, err
		},
	}
}

// NewTestConfig returns a config with fast retry/cache settings for tests
func NewTestConfig() *config.Config {
	return &config.Config{
		AlphavantageAPIKey: "test_alphavantage_key",
		MarketauxAPIKey:    "test_marketaux_key",
		FMPAPIKey:          "test_fmp_key",
		Task: config.TaskConfig{
			MaxRetries:    2,
			BaseDelayMS:   1,
			MaxDelayMS:    4,
			CacheTTLSecs:  60,
			CacheCapacity: 16,
		},
	}
}

// NewTestState builds shared process state backed by the test config
func NewTestState() *poll.State {
	cfg := NewTestConfig()
	return &poll.State{
		Client:  fetcher.NewHTTPClient(0),
		Cache:   cache.NewRWCache(cfg.Task.CacheCapacity),
		Limiter: ratelimit.GetLimiter(),
		Config:  cfg,
	}
}
