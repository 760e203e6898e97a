// Package fmp polls the Financial Modeling Prep news and social-sentiment
// endpoints, which are split between the v3 and v4 API surfaces.
package fmp

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"newsfetcher/internal/config"
	"newsfetcher/internal/fetcher"
	"newsfetcher/internal/poll"
	"newsfetcher/internal/ratelimit"
)

// HandlerName is the registry key this client answers to.
const HandlerName = "fmp_news_polling"

type apiVersion int

const (
	v3 apiVersion = iota
	v4
)

type contentKind int

const (
	kindNews contentKind = iota
	kindSentiment
)

// operation maps a routing identifier to its API surface, path, and the
// shape its payload must validate against.
type operation struct {
	version apiVersion
	path    string
	kind    contentKind
}

var operations = map[string]operation{
	"fmp articles":              {v3, "fmp/articles", kindNews},
	"general news":              {v4, "general_news", kindNews},
	"stock news":                {v3, "stock_news", kindNews},
	"stock rss":                 {v4, "stock-news-sentiments-rss-feed", kindNews},
	"forex news":                {v4, "forex_news", kindNews},
	"crypto news":               {v4, "crypto_news", kindNews},
	"press releases":            {v3, "press_releases", kindNews},
	"social sentiment history":  {v4, "historical/social-sentiment", kindSentiment},
	"social sentiment trending": {v4, "social-sentiments/trending", kindSentiment},
	"social sentiment changes":  {v4, "social-sentiments/change", kindSentiment},
}

// Client fetches FMP articles, news feeds, press releases, and social
// sentiment series.
type Client struct {
	apiKey    string
	baseURLV3 string
	baseURLV4 string
}

// New creates an FMP client.
func New(cfg *config.Config) *Client {
	return &Client{
		apiKey:    cfg.FMPAPIKey,
		baseURLV3: cfg.FMPBaseURLV3,
		baseURLV4: cfg.FMPBaseURLV4,
	}
}

// Name implements dispatcher.Handler.
func (c *Client) Name() string {
	return HandlerName
}

// Poll merges the caller's parameters with the API key, resolves the
// requested operation to its v3 or v4 endpoint, and serves the result from
// cache or a retried fetch.
func (c *Client) Poll(ctx context.Context, st *poll.State, raw json.RawMessage) (json.RawMessage, error) {
	params, err := poll.ParseParams(raw)
	if err != nil {
		return nil, fetcher.NewRequestError(0, err.Error())
	}

	op, err := poll.Operation(params)
	if err != nil {
		return nil, err
	}
	spec, ok := operations[op]
	if !ok {
		return nil, fetcher.NewUnsupportedOperationError(op)
	}

	params["apikey"] = c.apiKey
	base := c.baseURLV3
	if spec.version == v4 {
		base = c.baseURLV4
	}
	url := poll.JoinPath(base, spec.path)

	key := poll.CacheKey(op, url, params)
	return fetcher.Retry(ctx, st.RetryConfig(), func() (json.RawMessage, error) {
		payload, err := fetcher.FetchOrCompute(ctx, st.Cache, key, func(ctx context.Context) (json.RawMessage, error) {
			return st.GetJSON(ctx, ratelimit.APIFMP, url, params)
		}, st.Config.Task.CacheTTL())
		if err != nil {
			return nil, err
		}
		// Validation sits inside the retry loop: a bad-shape payload is
		// retried like any other failure.
		if err := validatePayload(payload, spec.kind); err != nil {
			return nil, err
		}
		return payload, nil
	})
}

// article is the validation shell for news-shaped payloads.
type article struct {
	Title         string   `json:"title"`
	Date          string   `json:"date"`
	Content       string   `json:"content"`
	Tickers       any      `json:"tickers"` // string or list, depending on endpoint
	Site          string   `json:"site"`
	PublishedDate string   `json:"publishedDate"`
	URL           string   `json:"url"`
	Symbol        string   `json:"symbol"`
	Text          string   `json:"text"`
	Sentiment     string   `json:"sentiment"`
	SentimentScore *float64 `json:"sentimentScore"`
}

// sentiment is the validation shell for social-sentiment payloads.
type sentiment struct {
	Date            string   `json:"date"`
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name"`
	Rank            *int64   `json:"rank"`
	Sentiment       *float64 `json:"sentiment"`
	LastSentiment   *float64 `json:"lastSentiment"`
	SentimentChange *float64 `json:"sentimentChange"`
}

// pageable is the spring-style wrapper some v3 endpoints return.
type pageable struct {
	Content       []json.RawMessage `json:"content"`
	TotalPages    *int64            `json:"totalPages"`
	TotalElements *int64            `json:"totalElements"`
}

// validatePayload is a one-shot strict decode used purely as a shape gate.
// Endpoints return either a bare array or a pageable wrapper with a
// "content" array; both are accepted.
func validatePayload(raw json.RawMessage, kind contentKind) error {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return fetcher.NewDecodeError(fmt.Errorf("empty response body"))
	}

	items := json.RawMessage(trimmed)
	if trimmed[0] != '[' {
		var page pageable
		if err := json.Unmarshal(raw, &page); err != nil {
			return fetcher.NewDecodeError(err)
		}
		if page.Content == nil {
			return fetcher.NewDecodeError(fmt.Errorf("missing %q array in response", "content"))
		}
		wrapped, err := json.Marshal(page.Content)
		if err != nil {
			return fetcher.NewDecodeError(err)
		}
		items = wrapped
	}

	switch kind {
	case kindNews:
		var shape []article
		if err := json.Unmarshal(items, &shape); err != nil {
			return fetcher.NewDecodeError(err)
		}
	case kindSentiment:
		var shape []sentiment
		if err := json.Unmarshal(items, &shape); err != nil {
			return fetcher.NewDecodeError(err)
		}
	}
	return nil
}
