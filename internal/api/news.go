package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/jdholdren/briefly/internal/briefly"
	brferrs "github.com/jdholdren/briefly/internal/errors"
	"github.com/jdholdren/briefly/internal/feed"
	"github.com/jdholdren/briefly/internal/gnews"
	"github.com/jdholdren/briefly/internal/serverutil"
)

// NewsResp is the shape of both search and personalized feed responses.
type NewsResp struct {
	Results []briefly.Article `json:"results"`
	Total   int               `json:"total"`
	Page    int               `json:"page,omitempty"`
	HasMore *bool             `json:"has_more,omitempty"`
	Message string            `json:"message,omitempty"`
}

func (s *Server) getNews(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query().Get("q")
	if query == "" {
		return brferrs.E("q is required", http.StatusBadRequest)
	}

	pageSize, err := queryInt(r, "max", 10, 1, 50)
	if err != nil {
		return err
	}
	page, err := queryInt(r, "page", 1, 1, 10)
	if err != nil {
		return err
	}

	results, more, err := s.pager.GetPage(r.Context(), query, pageSize, page)
	if err != nil {
		if errors.Is(err, gnews.ErrNoAPIKey) {
			return brferrs.E(fmt.Errorf("news provider is not configured: %w", err), http.StatusInternalServerError)
		}
		return err
	}
	if results == nil {
		results = []briefly.Article{}
	}

	return serverutil.WriteJSON(w, http.StatusOK, NewsResp{
		Results: results,
		Total:   len(results),
		Page:    page,
		HasMore: &more,
	})
}

func (s *Server) getPersonalizedFeed(w http.ResponseWriter, r *http.Request) error {
	usr, err := s.currentUser(r)
	if err != nil {
		return err
	}

	results, err := s.feed.Personalized(r.Context(), usr.SavedTopics)
	if err != nil {
		if errors.Is(err, feed.ErrNoTopics) {
			return serverutil.WriteJSON(w, http.StatusOK, NewsResp{
				Results: []briefly.Article{},
				Message: "No saved topics. Add topics to get personalized news.",
			})
		}
		if errors.Is(err, gnews.ErrNoAPIKey) {
			return brferrs.E(fmt.Errorf("news provider is not configured: %w", err), http.StatusInternalServerError)
		}
		return err
	}
	if results == nil {
		results = []briefly.Article{}
	}

	return serverutil.WriteJSON(w, http.StatusOK, NewsResp{
		Results: results,
		Total:   len(results),
	})
}

// queryInt parses an optional integer query parameter, rejecting values
// outside [min, max].
func queryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, brferrs.E(http.StatusBadRequest, brferrs.Detail{
			Field: name,
			Error: "must be an integer between " + strconv.Itoa(min) + " and " + strconv.Itoa(max),
		}, "invalid query parameter")
	}
	return n, nil
}
