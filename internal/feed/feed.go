// Package feed composes per-topic searches into one personalized feed.
package feed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jdholdren/briefly/internal/briefly"
)

// ErrNoTopics distinguishes "nothing to search for" from a search that
// found nothing.
var ErrNoTopics = errors.New("no saved topics")

// Pager serves paginated, cached search results.
type Pager interface {
	GetPage(ctx context.Context, query string, pageSize, page int) ([]briefly.Article, bool, error)
}

const (
	// Only this many topics are fetched per feed request, bounding the
	// upstream cost no matter how many a user has saved.
	topicLimit = 5
	// Articles requested per topic.
	perTopic = 5
)

type Aggregator struct {
	pager Pager
}

func NewAggregator(pager Pager) Aggregator {
	return Aggregator{pager: pager}
}

// Personalized merges a small page of results for each of the user's first
// few topics. Every returned article is tagged with the topic whose fetch
// produced it, and an article matching several topics appears once, under
// whichever topic returned it first.
func (a Aggregator) Personalized(ctx context.Context, topics []string) ([]briefly.Article, error) {
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}

	if len(topics) > topicLimit {
		topics = topics[:topicLimit]
	}

	var (
		all  []briefly.Article
		seen = map[string]struct{}{}
	)
	for _, topic := range topics {
		articles, _, err := a.pager.GetPage(ctx, topic, perTopic, 1)
		if err != nil {
			return nil, err
		}
		if len(articles) == 0 {
			slog.Debug("no articles for topic", "topic", topic)
			continue
		}

		for _, art := range articles {
			if _, ok := seen[art.URL]; ok {
				continue
			}
			seen[art.URL] = struct{}{}

			art.Topic = topic
			all = append(all, art)
		}
	}

	return all, nil
}
