// Package api is the HTTP surface of the Briefly backend.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/jdholdren/briefly/internal/briefly"
	brferrs "github.com/jdholdren/briefly/internal/errors"
	"github.com/jdholdren/briefly/internal/feed"
	"github.com/jdholdren/briefly/internal/serverutil"
	"github.com/jdholdren/briefly/internal/token"
)

const apiVersion = "2.0.0"

type (
	// Pager serves paginated, cached news searches.
	Pager interface {
		GetPage(ctx context.Context, query string, pageSize, page int) ([]briefly.Article, bool, error)
	}

	// Server handles the consumer-facing API: auth, topics, favorites,
	// search and the personalized feed.
	Server struct {
		*http.Server

		repo   briefly.Repository
		tokens token.Service
		pager  Pager
		feed   feed.Aggregator

		environment     string
		production      bool
		gnewsConfigured bool
	}

	ServerConfig struct {
		Port           int
		AllowedOrigins []string
		Environment    string

		// Whether the upstream news credential is present; reported by
		// the readiness probe.
		GNewsConfigured bool
	}
)

func NewServer(config ServerConfig, repo briefly.Repository, tokens token.Service, pager Pager) *Server {
	srvr := &Server{
		repo:            repo,
		tokens:          tokens,
		pager:           pager,
		feed:            feed.NewAggregator(pager),
		environment:     config.Environment,
		production:      config.Environment == "production",
		gnewsConfigured: config.GNewsConfigured,
	}

	r := errRouter{Router: mux.NewRouter(), srv: srvr}
	r.Use(serverutil.AccessLogMiddleware) // Log everything

	r.HandleFuncE("/", srvr.getRoot).Methods(http.MethodGet)
	r.HandleFuncE("/health", srvr.getHealth).Methods(http.MethodGet)
	r.HandleFuncE("/ready", srvr.getReady).Methods(http.MethodGet)

	r.HandleFuncE("/auth/signup", srvr.postSignup).Methods(http.MethodPost)
	r.HandleFuncE("/auth/login", srvr.postLogin).Methods(http.MethodPost)
	r.HandleFuncE("/auth/logout", srvr.postLogout).Methods(http.MethodPost)

	// Search and its alias for older clients.
	r.HandleFuncE("/news", srvr.getNews).Methods(http.MethodGet)
	r.HandleFuncE("/search", srvr.getNews).Methods(http.MethodGet)

	if !srvr.production {
		// Interactive docs are for local poking only.
		r.HandleFuncE("/docs", srvr.getDocs).Methods(http.MethodGet)
	}

	authed := errRouter{Router: r.NewRoute().Subrouter(), srv: srvr}
	authed.Use(srvr.requireAuthMiddleware)

	authed.HandleFuncE("/auth/me", srvr.getMe).Methods(http.MethodGet)

	// Topic management
	authed.HandleFuncE("/topics", srvr.getTopics).Methods(http.MethodGet)
	authed.HandleFuncE("/topics", srvr.postTopic).Methods(http.MethodPost)
	authed.HandleFuncE("/topics", srvr.putTopics).Methods(http.MethodPut)
	authed.HandleFuncE("/topics/{topic}", srvr.deleteTopic).Methods(http.MethodDelete)

	// Favorite management
	authed.HandleFuncE("/favorites", srvr.getFavorites).Methods(http.MethodGet)
	authed.HandleFuncE("/favorites", srvr.postFavorite).Methods(http.MethodPost)
	authed.HandleFuncE("/favorites", srvr.deleteFavorite).Methods(http.MethodDelete)

	// Personalized feed
	authed.HandleFuncE("/feed/personalized", srvr.getPersonalizedFeed).Methods(http.MethodGet)

	srvr.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Handler: handlers.CORS(
			handlers.AllowedOrigins(config.AllowedOrigins),
			handlers.AllowCredentials(),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"content-type", "authorization"}),
		)(r),
	}

	slog.Debug("configured api server", "port", config.Port, "environment", config.Environment)

	return srvr
}

// handlerFuncE is a modified type of [http.HandlerFunc] that returns an error.
type handlerFuncE func(w http.ResponseWriter, r *http.Request) error

// Adapts a handlerFuncE into an [http.Handler], coercing whatever error
// comes back into a structured response. Internal detail is suppressed in
// production.
func (s *Server) handle(f handlerFuncE) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := f(w, r)
		if err == nil {
			return
		}

		// Either it's already a structured error, or coerce it to one
		sErr := &brferrs.Error{}
		if !errors.As(err, &sErr) {
			slog.Error("unhandled error", "error", err)
			sErr = brferrs.E(http.StatusInternalServerError, err)
		}
		if sErr.Status >= http.StatusInternalServerError && s.production {
			sErr = brferrs.E(sErr.Status, "internal server error")
		}

		if err := serverutil.WriteJSON(w, sErr.Status, sErr); err != nil {
			slog.Error("error writing response", "error", err)
		}
	})
}

// errRouter is a newtype around a mux router that allows attaching handlers that return errors.
type errRouter struct {
	*mux.Router
	srv *Server
}

func (r errRouter) HandleFuncE(path string, f handlerFuncE) *mux.Route {
	return r.Handle(path, r.srv.handle(f))
}
