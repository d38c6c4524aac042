package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jdholdren/briefly/internal/briefly"
	brferrs "github.com/jdholdren/briefly/internal/errors"
	"github.com/jdholdren/briefly/internal/serverutil"
	"github.com/jdholdren/briefly/internal/token"
	"github.com/jdholdren/briefly/logger"
)

type ctxKey int

const claimsKey ctxKey = 0

// Rejects requests without a valid bearer token and stashes its claims on
// the context. Every rejection looks the same to the client, whatever the
// reason was.
func (s *Server) requireAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			unauthenticated(w)
			return
		}

		claims, ok := s.tokens.Validate(strings.TrimPrefix(authz, "Bearer "))
		if !ok {
			unauthenticated(w)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = logger.Ctx(ctx, slog.String("user_id", claims.Subject))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	if err := serverutil.WriteJSON(w, http.StatusUnauthorized, brferrs.E(http.StatusUnauthorized, "not authenticated")); err != nil {
		slog.Error("error writing response", "error", err)
	}
}

// Loads the user tied to the request's token.
func (s *Server) currentUser(r *http.Request) (briefly.User, error) {
	claims, ok := r.Context().Value(claimsKey).(token.Claims)
	if !ok {
		return briefly.User{}, brferrs.E(http.StatusUnauthorized, "not authenticated")
	}

	usr, err := s.repo.User(r.Context(), claims.Subject)
	if errors.Is(err, briefly.ErrNotFound) {
		// The account behind a live token is gone; treat like any bad token.
		return briefly.User{}, brferrs.E(http.StatusUnauthorized, "not authenticated")
	}
	if err != nil {
		return briefly.User{}, err
	}

	return usr, nil
}
