// Package newscache holds the per-query result sets fetched from upstream
// and serves paginated slices out of them.
//
// One fan-out deliberately over-fetches (~50 articles), so pages after the
// first are served within the TTL window with zero further upstream calls.
package newscache

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jdholdren/briefly/internal/briefly"
)

// Fetcher does the upstream fan-out for one query.
type Fetcher interface {
	FetchBatch(ctx context.Context, query string) ([]briefly.Article, error)
}

const (
	// DefaultTTL is how long a fetched result set stays servable.
	DefaultTTL = 300 * time.Second

	// Bounds how many distinct queries stay resident.
	maxEntries = 512
)

// One query's deduplicated result set. Replaced wholesale on refresh,
// never patched.
type entry struct {
	articles  []briefly.Article
	fetchedAt time.Time
}

// Cache is shared across all requests; it is safe for concurrent use.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	entries *lru.Cache[string, entry]

	// Coalesces concurrent refreshes of the same key into one fan-out.
	group singleflight.Group

	now func() time.Time
}

func New(fetcher Fetcher) *Cache {
	entries, _ := lru.New[string, entry](maxEntries)
	return &Cache{
		fetcher: fetcher,
		ttl:     DefaultTTL,
		entries: entries,
		now:     time.Now,
	}
}

// Normalize maps a user query onto its cache key, so that "Ukraine" and
// "ukraine " land on the same entry.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// GetPage returns the requested page of results for the query, along with
// whether more pages exist in the cached set.
//
// A fresh entry is sliced directly; pages past its end are simply empty and
// never force another fetch. A missing or stale entry triggers one full
// refresh, and a refresh that comes back empty leaves any stale entry in
// place and serves no results for this call.
func (c *Cache) GetPage(ctx context.Context, query string, pageSize, page int) ([]briefly.Article, bool, error) {
	key := Normalize(query)

	if ent, ok := c.entries.Get(key); ok && c.now().Sub(ent.fetchedAt) < c.ttl {
		return pageOf(ent.articles, pageSize, page), hasMore(len(ent.articles), pageSize, page), nil
	}

	refreshed, err, _ := c.group.Do(key, func() (any, error) {
		articles, err := c.fetcher.FetchBatch(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(articles) > 0 {
			c.entries.Add(key, entry{articles: articles, fetchedAt: c.now()})
		}
		return articles, nil
	})
	if err != nil {
		return nil, false, err
	}

	articles := refreshed.([]briefly.Article)

	more := false
	if ent, ok := c.entries.Get(key); ok {
		more = hasMore(len(ent.articles), pageSize, page)
	}

	if len(articles) == 0 {
		return nil, more, nil
	}

	return pageOf(articles, pageSize, page), more, nil
}

func pageOf(articles []briefly.Article, pageSize, page int) []briefly.Article {
	start := (page - 1) * pageSize
	if start >= len(articles) {
		return nil
	}

	end := start + pageSize
	if end > len(articles) {
		end = len(articles)
	}

	return articles[start:end]
}

func hasMore(total, pageSize, page int) bool {
	return page*pageSize < total
}
