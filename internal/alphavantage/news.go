// Package alphavantage polls the Alpha Vantage market news & sentiment API.
//
// Reference: https://www.alphavantage.co/documentation/ (NEWS_SENTIMENT).
package alphavantage

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"newsfetcher/internal/config"
	"newsfetcher/internal/fetcher"
	"newsfetcher/internal/poll"
	"newsfetcher/internal/ratelimit"
)

// HandlerName is the registry key this client answers to.
const HandlerName = "alphavantage_news_polling"

// newsSentimentFunction is the upstream query function, injected after the
// routing field has been stripped from the caller's parameters.
const newsSentimentFunction = "NEWS_SENTIMENT"

// Client fetches live and historical market news with sentiment scores.
type Client struct {
	apiKey  string
	baseURL string
}

// New creates an Alpha Vantage news client.
func New(cfg *config.Config) *Client {
	return &Client{
		apiKey:  cfg.AlphavantageAPIKey,
		baseURL: cfg.AlphavantageBaseURL,
	}
}

// Name implements dispatcher.Handler.
func (c *Client) Name() string {
	return HandlerName
}

// Poll merges the caller's parameters with the API key, resolves the
// requested operation, and serves the result from cache or a retried fetch.
func (c *Client) Poll(ctx context.Context, st *poll.State, raw json.RawMessage) (json.RawMessage, error) {
	params, err := poll.ParseParams(raw)
	if err != nil {
		return nil, fetcher.NewRequestError(0, err.Error())
	}

	op, err := poll.Operation(params)
	if err != nil {
		return nil, err
	}
	switch op {
	case "alphavantage", "news sentiment":
	default:
		return nil, fetcher.NewUnsupportedOperationError(op)
	}

	params["apikey"] = c.apiKey
	params["function"] = newsSentimentFunction

	key := poll.CacheKey(op, c.baseURL, params)
	return fetcher.Retry(ctx, st.RetryConfig(), func() (json.RawMessage, error) {
		payload, err := fetcher.FetchOrCompute(ctx, st.Cache, key, func(ctx context.Context) (json.RawMessage, error) {
			return st.GetJSON(ctx, ratelimit.APIAlphaVantage, c.baseURL, params)
		}, st.Config.Task.CacheTTL())
		if err != nil {
			return nil, err
		}
		// Validation sits inside the retry loop: a bad-shape payload is
		// retried like any other failure.
		if err := validateNewsResponse(payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
}

// newsResponse is the decode target used as a one-shot validation gate; the
// raw payload, not this struct, flows onward.
type newsResponse struct {
	Items                    string     `json:"items"`
	SentimentScoreDefinition string     `json:"sentiment_score_definition"`
	RelevanceScoreDefinition string     `json:"relevance_score_definition"`
	Feed                     []feedItem `json:"feed"`
}

type feedItem struct {
	Title                 string            `json:"title"`
	URL                   string            `json:"url"`
	TimePublished         string            `json:"time_published"`
	Authors               []string          `json:"authors"`
	Summary               string            `json:"summary"`
	Source                string            `json:"source"`
	Topics                []topic           `json:"topics"`
	OverallSentimentScore float64           `json:"overall_sentiment_score"`
	OverallSentimentLabel string            `json:"overall_sentiment_label"`
	TickerSentiment       []tickerSentiment `json:"ticker_sentiment"`
}

type topic struct {
	Topic          string `json:"topic"`
	RelevanceScore string `json:"relevance_score"`
}

type tickerSentiment struct {
	Ticker               string `json:"ticker"`
	RelevanceScore       string `json:"relevance_score"`
	TickerSentimentScore string `json:"ticker_sentiment_score"`
	TickerSentimentLabel string `json:"ticker_sentiment_label"`
}

func validateNewsResponse(raw json.RawMessage) error {
	var shape newsResponse
	if err := json.Unmarshal(raw, &shape); err != nil {
		return fetcher.NewDecodeError(err)
	}
	if shape.Feed == nil {
		return fetcher.NewDecodeError(fmt.Errorf("missing %q array in response", "feed"))
	}
	return nil
}
