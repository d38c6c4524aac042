package api

import (
	"net/http"

	"github.com/jdholdren/briefly/internal/briefly"
	brferrs "github.com/jdholdren/briefly/internal/errors"
	"github.com/jdholdren/briefly/internal/serverutil"
)

type FavoritesResp struct {
	Favorites []briefly.Favorite `json:"favorites"`
}

func (s *Server) getFavorites(w http.ResponseWriter, r *http.Request) error {
	usr, err := s.currentUser(r)
	if err != nil {
		return err
	}

	favs, err := s.repo.Favorites(r.Context(), usr.ID)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, FavoritesResp{Favorites: favs})
}

// FavoriteReq is the article snapshot the client wants saved.
type FavoriteReq struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Image   string `json:"image"`
	Source  string `json:"source"`
	Summary string `json:"summary"`
	Date    string `json:"date"`
}

func (req FavoriteReq) Validate() error {
	var details []brferrs.Detail
	if req.URL == "" {
		details = append(details, brferrs.Detail{Field: "url", Error: "is required"})
	}
	if req.Title == "" {
		details = append(details, brferrs.Detail{Field: "title", Error: "is required"})
	}
	if req.Source == "" {
		details = append(details, brferrs.Detail{Field: "source", Error: "is required"})
	}

	if len(details) > 0 {
		return brferrs.E("invalid favorite", http.StatusBadRequest, details)
	}
	return nil
}

func (s *Server) postFavorite(w http.ResponseWriter, r *http.Request) error {
	body, err := serverutil.DecodeValid[FavoriteReq](r.Body)
	if err != nil {
		return err
	}

	usr, err := s.currentUser(r)
	if err != nil {
		return err
	}

	added, err := s.repo.AddFavorite(r.Context(), usr.ID, briefly.Article{
		URL:     body.URL,
		Title:   body.Title,
		Image:   body.Image,
		Source:  body.Source,
		Summary: body.Summary,
		Date:    body.Date,
	})
	if err != nil {
		return err
	}
	if !added {
		return brferrs.E("article already in favorites", http.StatusBadRequest)
	}

	return serverutil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Article added to favorites",
	})
}

// Removal is idempotent: deleting something never saved still succeeds.
func (s *Server) deleteFavorite(w http.ResponseWriter, r *http.Request) error {
	url := r.URL.Query().Get("url")
	if url == "" {
		return brferrs.E("url is required", http.StatusBadRequest)
	}

	usr, err := s.currentUser(r)
	if err != nil {
		return err
	}

	if _, err := s.repo.RemoveFavorite(r.Context(), usr.ID, url); err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Article removed from favorites",
	})
}
