package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/goccy/go-json"

	"newsfetcher/internal/alphavantage"
	"newsfetcher/internal/dispatcher"
	"newsfetcher/internal/fmp"
	"newsfetcher/internal/marketaux"
	"newsfetcher/internal/poll"
	"newsfetcher/internal/scheduler"
	"newsfetcher/internal/server"
	"newsfetcher/internal/testutil"
)

const upstreamFeed = `{"items":"1","feed":[{"title":"t","url":"u","time_published":"20250101T120000","authors":[],"summary":"s","source":"x","topics":[],"overall_sentiment_score":0,"overall_sentiment_label":"Neutral","ticker_sentiment":[]}]}`

// wireUp assembles the full command path the way main does: provider
// handlers in a registry, a dispatcher over shared state, and the WebSocket
// server in front, with Alpha Vantage pointed at the given upstream.
func wireUp(t *testing.T, upstreamURL string) (*httptest.Server, *poll.State) {
	t.Helper()

	st := testutil.NewTestState()
	st.Config.AlphavantageBaseURL = upstreamURL
	st.Config.MarketauxBaseURL = upstreamURL
	st.Config.FMPBaseURLV3 = upstreamURL
	st.Config.FMPBaseURLV4 = upstreamURL

	registry := dispatcher.NewRegistry()
	registry.Register(alphavantage.New(st.Config))
	registry.Register(marketaux.New(st.Config))
	registry.Register(fmp.New(st.Config))

	s := server.New("", dispatcher.New(registry, st))
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return srv, st
}

func sendCommand(t *testing.T, conn *websocket.Conn, raw string) dispatcher.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, []byte(raw)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var resp dispatcher.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("invalid envelope: %s", data)
	}
	return resp
}

func TestEndToEnd_CommandToUpstream(t *testing.T) {
	var upstreamHits int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHits++
		if got := r.URL.Query().Get("apikey"); got != "test_alphavantage_key" {
			t.Errorf("apikey = %q", got)
		}
		w.Write([]byte(upstreamFeed))
	}))
	defer upstream.Close()

	srv, _ := wireUp(t, upstream.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	command := `{
		"target": "task",
		"args": {
			"for_task": {
				"function": "AggregatedPolling",
				"look_for": {"where_": "alphavantage_news_polling"},
				"params": {"function": "news sentiment", "tickers": "AAPL"}
			}
		}
	}`

	resp := sendCommand(t, conn, command)
	if resp.Status != dispatcher.StatusSuccess {
		t.Fatalf("status = %d, reason = %v", resp.Status, resp.Reason)
	}
	if string(resp.Message) != upstreamFeed {
		t.Errorf("message = %s", resp.Message)
	}

	// Same command again: the shared cache answers, the upstream does not.
	resp = sendCommand(t, conn, command)
	if resp.Status != dispatcher.StatusSuccess {
		t.Fatalf("second status = %d, reason = %v", resp.Status, resp.Reason)
	}
	if upstreamHits != 1 {
		t.Errorf("upstream hit %d times, want 1", upstreamHits)
	}
}

func TestEndToEnd_ProviderFailureEmbedded(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	srv, _ := wireUp(t, upstream.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+srv.URL[len("http"):], nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	resp := sendCommand(t, conn, `{
		"target": "task",
		"args": {
			"for_task": {
				"function": "AggregatedPolling",
				"look_for": {"where_": "marketaux_news_polling"},
				"params": {"function": "all news"}
			}
		}
	}`)

	// The envelope reports dispatch success; the provider failure rides in
	// the message.
	if resp.Status != dispatcher.StatusSuccess {
		t.Fatalf("status = %d, reason = %v", resp.Status, resp.Reason)
	}
	var desc string
	if err := json.Unmarshal(resp.Message, &desc); err != nil {
		t.Fatalf("message is not a JSON string: %s", resp.Message)
	}
	if desc == "" {
		t.Error("failure description is empty")
	}
}

func TestEndToEnd_AggregationCycle(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(upstreamFeed))
	}))
	defer upstream.Close()

	st := testutil.NewTestState()
	st.Config.AlphavantageBaseURL = upstream.URL

	registry := dispatcher.NewRegistry()
	registry.Register(alphavantage.New(st.Config))

	agg := scheduler.NewAggregator(registry, st)
	agg.SetDefaultParams(alphavantage.HandlerName, json.RawMessage(`{"function":"news sentiment","tickers":"AAPL"}`))

	results := agg.RunCycle(context.Background())
	if len(results) != 1 {
		t.Fatalf("cycle produced %d results, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("cycle result error: %v", results[0].Err)
	}
	if string(results[0].Payload) != upstreamFeed {
		t.Errorf("cycle payload = %s", results[0].Payload)
	}
}
