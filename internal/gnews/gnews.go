// Package gnews fetches search results from the GNews API.
//
// A single logical search fans out over a fixed set of query variations to
// gather a deeper result set than one upstream call would give us, then
// dedupes by article URL.
package gnews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sethvargo/go-retry"

	"github.com/jdholdren/briefly/internal/briefly"
)

const defaultBaseURL = "https://gnews.io/api/v4/search"

// Suffixes appended to the user's query, in the order they are fetched.
// The merged result list preserves this ordering so cache contents stay
// deterministic.
var queryVariations = []string{
	"", // Original query
	" latest",
	" news",
	" today",
	" update",
}

const (
	// Stop fanning out once this many unique articles are gathered.
	maxArticles = 50
	// Articles requested per upstream call.
	maxPerRequest = 10

	callTimeout = 15 * time.Second
)

// ErrNoAPIKey means the upstream credential was never configured. This is
// reported before any network attempt is made.
var ErrNoAPIKey = errors.New("gnews api key not configured")

// Client performs the query-variation fan-out against GNews.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client: &http.Client{
			Timeout: callTimeout,
		},
	}
}

// Shape of a GNews search response.
type searchResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// FetchBatch runs the full fan-out for a query and returns the deduplicated
// articles in first-seen order.
//
// A single variation failing is not fatal: it is logged and skipped. An
// empty result is not an error either; only a missing API key is.
func (c *Client) FetchBatch(ctx context.Context, query string) ([]briefly.Article, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	var (
		all  []briefly.Article
		seen = map[string]struct{}{}
	)
	for _, variation := range queryVariations {
		search := strings.TrimSpace(query + variation)

		resp, err := c.search(ctx, search)
		if err != nil {
			slog.Warn("error fetching variation", "query", search, "error", err)
			continue
		}

		for _, item := range resp.Articles {
			if item.URL == "" {
				// URL is the dedup identity, so there's nothing to key on.
				continue
			}
			if _, ok := seen[item.URL]; ok {
				continue
			}
			seen[item.URL] = struct{}{}

			source := item.Source.Name
			if source == "" {
				source = "Unknown"
			}
			all = append(all, briefly.Article{
				URL:     item.URL,
				Title:   sanitize(item.Title),
				Summary: sanitize(item.Description),
				Content: item.Content,
				Image:   item.Image,
				Date:    item.PublishedAt,
				Source:  source,
			})
		}

		if len(all) >= maxArticles {
			// Enough gathered; don't spend more upstream calls.
			break
		}
	}

	slog.Info("fan-out complete", "query", query, "unique_articles", len(all))
	return all, nil
}

// Performs one upstream call, retrying briefly on transport errors.
func (c *Client) search(ctx context.Context, query string) (searchResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return searchResponse{}, fmt.Errorf("error parsing base url: %w", err)
	}
	v := u.Query()
	v.Set("q", query)
	v.Set("lang", "en")
	v.Set("max", fmt.Sprintf("%d", maxPerRequest))
	v.Set("apikey", c.apiKey)
	u.RawQuery = v.Encode()

	var result searchResponse
	err = retry.Do(ctx, retry.WithMaxRetries(2, retry.NewFibonacci(250*time.Millisecond)), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("error getting search results: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("error decoding search response: %w", err)
		}

		return nil
	})
	if err != nil {
		return searchResponse{}, err
	}

	return result, nil
}

var stripPolicy = bluemonday.StrictPolicy()

// Removes all html tags from the string, usually a title or description.
//
// Also limits the length of the string so there's not a massive chunk of text being output.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = stripPolicy.Sanitize(s)
	if len(s) > 2048 {
		s = s[:2048]
	}

	return s
}
