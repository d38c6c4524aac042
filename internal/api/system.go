package api

import (
	"net/http"
	"time"

	"github.com/jdholdren/briefly/internal/serverutil"
)

func (s *Server) getRoot(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, map[string]any{
		"name":        "Briefly API",
		"version":     apiVersion,
		"status":      "running",
		"environment": s.environment,
		"endpoints": map[string]string{
			"auth":      "/auth/signup, /auth/login, /auth/logout, /auth/me",
			"topics":    "/topics",
			"favorites": "/favorites",
			"news":      "/news, /search",
			"feed":      "/feed/personalized",
			"health":    "/health, /ready",
		},
	})
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": s.environment,
		"version":     apiVersion,
	})
}

// getReady reports whether the service can actually do useful work, not
// just whether the process is up.
func (s *Server) getReady(w http.ResponseWriter, r *http.Request) error {
	checks := map[string]bool{
		"store":         true,
		"gnews_api_key": s.gnewsConfigured,
	}

	// Ready only when every check passes.
	ready := true
	for _, ok := range checks {
		ready = ready && ok
	}

	return serverutil.WriteJSON(w, http.StatusOK, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

func (s *Server) getDocs(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, map[string]any{
		"name":    "Briefly API",
		"version": apiVersion,
		"routes": []map[string]string{
			{"method": "POST", "path": "/auth/signup", "description": "create an account"},
			{"method": "POST", "path": "/auth/login", "description": "exchange credentials for a token"},
			{"method": "POST", "path": "/auth/logout", "description": "end the session"},
			{"method": "GET", "path": "/auth/me", "description": "current user profile"},
			{"method": "GET", "path": "/topics", "description": "list saved topics"},
			{"method": "POST", "path": "/topics", "description": "save a topic"},
			{"method": "PUT", "path": "/topics", "description": "replace all topics"},
			{"method": "DELETE", "path": "/topics/{topic}", "description": "remove a topic"},
			{"method": "GET", "path": "/favorites", "description": "list favorited articles"},
			{"method": "POST", "path": "/favorites", "description": "favorite an article"},
			{"method": "DELETE", "path": "/favorites", "description": "unfavorite by url"},
			{"method": "GET", "path": "/news", "description": "search news"},
			{"method": "GET", "path": "/feed/personalized", "description": "feed built from saved topics"},
			{"method": "GET", "path": "/health", "description": "liveness probe"},
			{"method": "GET", "path": "/ready", "description": "readiness probe"},
		},
	})
}
