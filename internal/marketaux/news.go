// Package marketaux polls the Marketaux global financial news API.
//
// Reference: https://www.marketaux.com/documentation.
package marketaux

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
const HandlerName = "marketaux_news_polling"

// Sub-endpoints, relative to the v1 base URL.
const (
	allNewsEndpoint     = "news/all"
	similarNewsEndpoint = "news/similar"
	newsByUUIDEndpoint  = "news/uuid"
)

// Client fetches global financial news filtered by identified entities.
type Client struct {
	apiToken string
	baseURL  string
}

// New creates a Marketaux news client.
func New(cfg *config.Config) *Client {
	return &Client{
		apiToken: cfg.MarketauxAPIKey,
		baseURL:  cfg.MarketauxBaseURL,
	}
}

// Name implements dispatcher.Handler.
func (c *Client) Name() string {
	return HandlerName
}

// Poll merges the caller's parameters with the API token, resolves the
// requested sub-endpoint, and serves the result from cache or a retried
// fetch. The similar-news and news-by-uuid operations consume a "uuid"
// parameter as a path segment.
func (c *Client) Poll(ctx context.Context, st *poll.State, raw json.RawMessage) (json.RawMessage, error) {
	params, err := poll.ParseParams(raw)
	if err != nil {
		return nil, fetcher.NewRequestError(0, err.Error())
	}

	op, err := poll.Operation(params)
	if err != nil {
		return nil, err
	}

	var endpoint string
	switch op {
	case "marketaux", "all news":
		endpoint = allNewsEndpoint
	case "similar news", "news by uuid":
		uuid, ok := params["uuid"]
		if !ok || uuid == "" {
			return nil, fetcher.NewRequestError(0, fmt.Sprintf("operation %q requires a %q parameter", op, "uuid"))
		}
		delete(params, "uuid")
		if op == "similar news" {
			endpoint = poll.JoinPath(similarNewsEndpoint, uuid)
		} else {
			endpoint = poll.JoinPath(newsByUUIDEndpoint, uuid)
		}
	default:
		return nil, fetcher.NewUnsupportedOperationError(op)
	}

	params["api_token"] = c.apiToken
	url := poll.JoinPath(c.baseURL, endpoint)

	key := poll.CacheKey(op, url, params)
	return fetcher.Retry(ctx, st.RetryConfig(), func() (json.RawMessage, error) {
		payload, err := fetcher.FetchOrCompute(ctx, st.Cache, key, func(ctx context.Context) (json.RawMessage, error) {
			return st.GetJSON(ctx, ratelimit.APIMarketaux, url, params)
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

// newsResponse is the decode target used as a one-shot validation gate.
type newsResponse struct {
	Meta *meta      `json:"meta"`
	Data []newsItem `json:"data"`
}

type meta struct {
	Found    int64 `json:"found"`
	Returned int64 `json:"returned"`
	Limit    int64 `json:"limit"`
	Page     int64 `json:"page"`
}

type newsItem struct {
	UUID           string   `json:"uuid"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Keywords       string   `json:"keywords"`
	Snippet        string   `json:"snippet"`
	URL            string   `json:"url"`
	Language       string   `json:"language"`
	PublishedAt    string   `json:"published_at"`
	Source         string   `json:"source"`
	RelevanceScore *float64 `json:"relevance_score"`
	Entities       []entity `json:"entities"`
}

type entity struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	Country        string  `json:"country"`
	Type           string  `json:"type"`
	Industry       string  `json:"industry"`
	MatchScore     float64 `json:"match_score"`
	SentimentScore float64 `json:"sentiment_score"`
}

func validateNewsResponse(raw json.RawMessage) error {
	var shape newsResponse
	if err := json.Unmarshal(raw, &shape); err != nil {
		return fetcher.NewDecodeError(err)
	}
	if shape.Meta == nil || shape.Data == nil {
		return fetcher.NewDecodeError(fmt.Errorf("missing %q or %q in response", "meta", "data"))
	}
	return nil
}
