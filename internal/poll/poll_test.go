package poll

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"newsfetcher/internal/config"
	"newsfetcher/internal/fetcher"
	"newsfetcher/internal/ratelimit"
)

func newState(t *testing.T) *State {
	t.Helper()
	return NewState(&config.Config{
		Task: config.TaskConfig{
			MaxRetries:    2,
			BaseDelayMS:   1,
			MaxDelayMS:    4,
			CacheTTLSecs:  60,
			CacheCapacity: 16,
		},
	})
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{
			name: "strings pass through",
			raw:  `{"tickers":"AAPL","sort":"LATEST"}`,
			want: map[string]string{"tickers": "AAPL", "sort": "LATEST"},
		},
		{
			name: "numbers and booleans are formatted",
			raw:  `{"limit":50,"page":1.5,"extended":true}`,
			want: map[string]string{"limit": "50", "page": "1.5", "extended": "true"},
		},
		{
			name: "nested structures are skipped",
			raw:  `{"tickers":"AAPL","filter":{"a":1},"list":[1,2]}`,
			want: map[string]string{"tickers": "AAPL"},
		},
		{
			name: "empty input yields empty map",
			raw:  ``,
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("ParseParams() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseParams() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("ParseParams()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestParseParams_NotAnObject(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `"text"`, `{broken`} {
		if _, err := ParseParams(json.RawMessage(raw)); err == nil {
			t.Errorf("ParseParams(%s) expected an error", raw)
		}
	}
}

func TestOperation(t *testing.T) {
	params := map[string]string{"function": "news sentiment", "tickers": "AAPL"}
	op, err := Operation(params)
	if err != nil {
		t.Fatalf("Operation() error: %v", err)
	}
	if op != "news sentiment" {
		t.Errorf("Operation() = %q, want %q", op, "news sentiment")
	}
	// The routing field must not leak into the outbound query.
	if _, ok := params[FunctionField]; ok {
		t.Error("routing field left in params after extraction")
	}
	if params["tickers"] != "AAPL" {
		t.Error("other parameters must survive extraction")
	}
}

func TestOperation_Missing(t *testing.T) {
	for _, params := range []map[string]string{{}, {"function": ""}, {"tickers": "AAPL"}} {
		_, err := Operation(params)
		var fe *fetcher.FetchError
		if !errors.As(err, &fe) || fe.Type != fetcher.ErrorTypeNoEndpoint {
			t.Errorf("Operation(%v) = %v, want a no_endpoint error", params, err)
		}
	}
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := CacheKey("news sentiment", "https://example.com/query", map[string]string{
		"tickers": "AAPL", "limit": "50", "sort": "LATEST",
	})
	b := CacheKey("news sentiment", "https://example.com/query", map[string]string{
		"sort": "LATEST", "limit": "50", "tickers": "AAPL",
	})
	if a != b {
		t.Errorf("parameter order changed the key: %q vs %q", a, b)
	}
	if a != "news sentiment|https://example.com/query|limit=50|sort=LATEST|tickers=AAPL" {
		t.Errorf("unexpected key %q", a)
	}
}

func TestCacheKey_DistinguishesInputs(t *testing.T) {
	base := CacheKey("op", "endpoint", map[string]string{"a": "1"})
	variants := []string{
		CacheKey("other", "endpoint", map[string]string{"a": "1"}),
		CacheKey("op", "elsewhere", map[string]string{"a": "1"}),
		CacheKey("op", "endpoint", map[string]string{"a": "2"}),
		CacheKey("op", "endpoint", map[string]string{"a": "1", "b": "2"}),
	}
	for _, v := range variants {
		if v == base {
			t.Errorf("distinct inputs produced identical key %q", v)
		}
	}
}

func TestGetJSON_Success(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	st := newState(t)
	body, err := st.GetJSON(context.Background(), ratelimit.APIAlphaVantage, srv.URL, map[string]string{"apikey": "k"})
	if err != nil {
		t.Fatalf("GetJSON() error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("GetJSON() = %s", body)
	}
	if gotQuery != "apikey=k" {
		t.Errorf("query = %q, want %q", gotQuery, "apikey=k")
	}
}

func TestGetJSON_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   fetcher.ErrorType
	}{
		{429, fetcher.ErrorTypeRateLimit},
		{500, fetcher.ErrorTypeServer},
		{503, fetcher.ErrorTypeServer},
		{400, fetcher.ErrorTypeRequest},
		{404, fetcher.ErrorTypeRequest},
		{201, fetcher.ErrorTypeUnhandled},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte("upstream says no"))
		}))

		st := newState(t)
		_, err := st.GetJSON(context.Background(), ratelimit.APIFMP, srv.URL, nil)
		srv.Close()

		var fe *fetcher.FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("status %d: err = %v, want *FetchError", tt.status, err)
		}
		if fe.Type != tt.want {
			t.Errorf("status %d classified as %q, want %q", tt.status, fe.Type, tt.want)
		}
		if fe.StatusCode != tt.status {
			t.Errorf("status %d recorded as %d", tt.status, fe.StatusCode)
		}
	}
}

func TestGetJSON_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	st := newState(t)
	_, err := st.GetJSON(context.Background(), ratelimit.APIMarketaux, srv.URL, nil)
	var fe *fetcher.FetchError
	if !errors.As(err, &fe) || fe.Type != fetcher.ErrorTypeNetwork {
		t.Fatalf("err = %v, want a network error", err)
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"https://api.example.com/v1", "news/all"}, "https://api.example.com/v1/news/all"},
		{[]string{"https://api.example.com/v1/", "/news/uuid/", "abc-123"}, "https://api.example.com/v1/news/uuid/abc-123"},
	}
	for _, tt := range tests {
		if got := JoinPath(tt.parts...); got != tt.want {
			t.Errorf("JoinPath(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}
