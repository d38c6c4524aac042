package gnews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/briefly/internal/briefly"
)

type fakeArticle struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	URL         string         `json:"url"`
	Image       string         `json:"image,omitempty"`
	PublishedAt string         `json:"publishedAt,omitempty"`
	Source      map[string]any `json:"source,omitempty"`
}

// Serves canned articles keyed by the exact search term.
func newFakeGNews(t *testing.T, byQuery map[string][]fakeArticle) (*httptest.Server, *[]string) {
	t.Helper()

	var (
		mu      sync.Mutex
		queries []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		mu.Lock()
		queries = append(queries, q)
		mu.Unlock()

		if r.URL.Query().Get("apikey") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		arts, ok := byQuery[q]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"articles": arts})
	}))
	t.Cleanup(srv.Close)

	return srv, &queries
}

func newTestClient(srv *httptest.Server) *Client {
	return &Client{
		apiKey:  "test-key",
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func TestFetchBatch_DedupesAndKeepsVariationOrder(t *testing.T) {
	srv, queries := newFakeGNews(t, map[string][]fakeArticle{
		"ukraine": {
			{Title: "One", URL: "https://example.com/1"},
			{Title: "Two", URL: "https://example.com/2"},
		},
		"ukraine latest": {
			{Title: "Two again", URL: "https://example.com/2"},
			{Title: "Three", URL: "https://example.com/3"},
		},
		"ukraine news":   {},
		"ukraine today":  {},
		"ukraine update": {},
	})

	got, err := newTestClient(srv).FetchBatch(context.Background(), "ukraine")
	require.NoError(t, err)

	var urls []string
	for _, a := range got {
		urls = append(urls, a.URL)
	}
	assert.Equal(t, []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
	}, urls)
	// The duplicate keeps its first-seen title.
	assert.Equal(t, "Two", got[1].Title)

	assert.Equal(t, []string{
		"ukraine",
		"ukraine latest",
		"ukraine news",
		"ukraine today",
		"ukraine update",
	}, *queries)
}

func TestFetchBatch_SkipsItemsWithoutURL(t *testing.T) {
	srv, _ := newFakeGNews(t, map[string][]fakeArticle{
		"go": {
			{Title: "No URL here"},
			{Title: "Has URL", URL: "https://example.com/go"},
		},
		"go latest": {},
		"go news":   {},
		"go today":  {},
		"go update": {},
	})

	got, err := newTestClient(srv).FetchBatch(context.Background(), "go")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com/go", got[0].URL)
}

func TestFetchBatch_VariationFailureIsAbsorbed(t *testing.T) {
	// Only the base query is known; every variation 500s.
	srv, _ := newFakeGNews(t, map[string][]fakeArticle{
		"climate": {
			{Title: "One", URL: "https://example.com/c1"},
		},
	})

	got, err := newTestClient(srv).FetchBatch(context.Background(), "climate")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFetchBatch_AllVariationsFailingReturnsEmpty(t *testing.T) {
	srv, _ := newFakeGNews(t, map[string][]fakeArticle{})

	got, err := newTestClient(srv).FetchBatch(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchBatch_StopsEarlyAtCap(t *testing.T) {
	many := make([]fakeArticle, maxArticles)
	for i := range many {
		many[i] = fakeArticle{
			Title: fmt.Sprintf("Article %d", i),
			URL:   fmt.Sprintf("https://example.com/%d", i),
		}
	}
	srv, queries := newFakeGNews(t, map[string][]fakeArticle{
		"busy": many,
	})

	got, err := newTestClient(srv).FetchBatch(context.Background(), "busy")
	require.NoError(t, err)
	assert.Len(t, got, maxArticles)
	// The cap was hit on the first variation, so no others were fetched.
	assert.Equal(t, []string{"busy"}, *queries)
}

func TestFetchBatch_MissingAPIKeyFailsFast(t *testing.T) {
	srv, queries := newFakeGNews(t, map[string][]fakeArticle{})

	c := newTestClient(srv)
	c.apiKey = ""

	_, err := c.FetchBatch(context.Background(), "anything")
	require.ErrorIs(t, err, ErrNoAPIKey)
	assert.Empty(t, *queries, "no upstream call should be attempted")
}

func TestFetchBatch_NormalizesArticles(t *testing.T) {
	srv, _ := newFakeGNews(t, map[string][]fakeArticle{
		"ai": {
			{
				Title:       "  <b>Bolded</b> headline ",
				Description: "<p>Some description</p>",
				URL:         "https://example.com/ai",
				Image:       "https://example.com/ai.jpg",
				PublishedAt: "2026-08-29T10:00:00Z",
				Source:      map[string]any{"name": "Example Times"},
			},
			{
				Title: "Sourceless",
				URL:   "https://example.com/anon",
			},
		},
		"ai latest": {},
		"ai news":   {},
		"ai today":  {},
		"ai update": {},
	})

	got, err := newTestClient(srv).FetchBatch(context.Background(), "ai")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, briefly.Article{
		URL:     "https://example.com/ai",
		Title:   "Bolded headline",
		Summary: "Some description",
		Image:   "https://example.com/ai.jpg",
		Date:    "2026-08-29T10:00:00Z",
		Source:  "Example Times",
	}, got[0])
	assert.Equal(t, "Unknown", got[1].Source)
}
