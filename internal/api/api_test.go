package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/briefly/internal/briefly"
	"github.com/jdholdren/briefly/internal/gnews"
	"github.com/jdholdren/briefly/internal/jsonstore"
	"github.com/jdholdren/briefly/internal/token"
)

// fakePager serves canned articles per query and records what was asked.
type fakePager struct {
	pages   map[string][]briefly.Article
	queries []string
	err     error
}

func (f *fakePager) GetPage(_ context.Context, query string, pageSize, page int) ([]briefly.Article, bool, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, false, f.err
	}

	arts := f.pages[query]
	if len(arts) > pageSize {
		arts = arts[:pageSize]
	}
	return arts, len(f.pages[query]) > pageSize, nil
}

func newTestServer(t *testing.T, pager Pager) *Server {
	t.Helper()

	store, err := jsonstore.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)

	if pager == nil {
		pager = &fakePager{}
	}

	return NewServer(ServerConfig{
		Port:            0,
		AllowedOrigins:  []string{"*"},
		Environment:     "test",
		GNewsConfigured: true,
	}, store, token.NewService("test-secret", time.Hour), pager)
}

func do(s *Server, method, target, body, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

// signUp registers a fresh account and returns its token.
func signUp(t *testing.T, s *Server, email string) string {
	t.Helper()

	body := fmt.Sprintf(`{"email": %q, "password": "hunter22", "name": "Test User"}`, email)
	rec := do(s, http.MethodPost, "/auth/signup", body, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestSignup(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, http.MethodPost, "/auth/signup", `{"email": "reader@example.com", "password": "hunter22", "name": "Reader"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Account created successfully", resp.Message)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "reader@example.com", resp.User.Email)
	assert.Equal(t, "Reader", resp.User.Name)
	assert.Empty(t, resp.User.SavedTopics)
	assert.Zero(t, resp.User.FavoritesCount)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	s := newTestServer(t, nil)
	signUp(t, s, "reader@example.com")

	// Casing doesn't make it a different account.
	rec := do(s, http.MethodPost, "/auth/signup", `{"email": "Reader@Example.com", "password": "hunter22", "name": "Imposter"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "email already registered")
}

func TestSignup_Invalid(t *testing.T) {
	for name, body := range map[string]string{
		"bad email":      `{"email": "nope", "password": "hunter22", "name": "Reader"}`,
		"short password": `{"email": "reader@example.com", "password": "abc", "name": "Reader"}`,
		"blank name":     `{"email": "reader@example.com", "password": "hunter22", "name": "  "}`,
		"malformed json": `{"email": `,
	} {
		t.Run(name, func(t *testing.T) {
			s := newTestServer(t, nil)
			rec := do(s, http.MethodPost, "/auth/signup", body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t, nil)
	signUp(t, s, "reader@example.com")

	rec := do(s, http.MethodPost, "/auth/login", `{"email": "reader@example.com", "password": "wrong-password"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")
}

func TestLogin_UnknownEmail(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, http.MethodPost, "/auth/login", `{"email": "ghost@example.com", "password": "whatever"}`, "")

	// Indistinguishable from a wrong password.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)
	signUp(t, s, "reader@example.com")

	rec := do(s, http.MethodPost, "/auth/login", `{"email": "reader@example.com", "password": "hunter22"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AuthResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Login successful", resp.Message)
	assert.NotEmpty(t, resp.Token)
}

func TestRequireAuth(t *testing.T) {
	s := newTestServer(t, nil)

	for name, header := range map[string]string{
		"missing":    "",
		"not bearer": "Basic abc123",
		"garbage":    "Bearer not.a.token",
		"wrong":      "Bearer " + mustIssue(t, token.NewService("other-secret", time.Hour)),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/topics", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			s.Handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func mustIssue(t *testing.T, svc token.Service) string {
	t.Helper()
	tok, err := svc.Issue("someone-usr", "someone@example.com")
	require.NoError(t, err)
	return tok
}

func TestTopics(t *testing.T) {
	s := newTestServer(t, nil)
	tok := signUp(t, s, "reader@example.com")

	rec := do(s, http.MethodPost, "/topics", `{"topic": "golang"}`, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TopicsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Topic saved", resp.Message)
	assert.Equal(t, []string{"golang"}, resp.Topics)

	// Saving it again, differently cased, changes nothing.
	rec = do(s, http.MethodPost, "/topics", `{"topic": "GoLang"}`, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Topic already saved", resp.Message)
	assert.Equal(t, []string{"golang"}, resp.Topics)
}

func TestPostTopic_Profanity(t *testing.T) {
	s := newTestServer(t, nil)
	tok := signUp(t, s, "reader@example.com")

	rec := do(s, http.MethodPost, "/topics", `{"topic": "fucking politics"}`, tok)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "inappropriate language")
}

func TestPutTopics_Replaces(t *testing.T) {
	s := newTestServer(t, nil)
	tok := signUp(t, s, "reader@example.com")

	rec := do(s, http.MethodPost, "/topics", `{"topic": "golang"}`, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodPut, "/topics", `["rust", "zig"]`, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TopicsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Topics updated", resp.Message)
	assert.Equal(t, []string{"rust", "zig"}, resp.Topics)
}

func TestDeleteTopic(t *testing.T) {
	s := newTestServer(t, nil)
	tok := signUp(t, s, "reader@example.com")

	rec := do(s, http.MethodPut, "/topics", `["golang", "rust"]`, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodDelete, "/topics/GOLANG", "", tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TopicsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Topic removed", resp.Message)
	assert.Equal(t, []string{"rust"}, resp.Topics)
}

func TestFavorites(t *testing.T) {
	s := newTestServer(t, nil)
	tok := signUp(t, s, "reader@example.com")

	body := `{"url": "https://example.com/a", "title": "A Story", "source": "Example News", "summary": "Something happened"}`
	rec := do(s, http.MethodPost, "/favorites", body, tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Article added to favorites")

	// Same URL again is rejected.
	rec = do(s, http.MethodPost, "/favorites", body, tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in favorites")

	rec = do(s, http.MethodGet, "/favorites", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var favs FavoritesResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &favs))
	require.Len(t, favs.Favorites, 1)
	assert.Equal(t, "https://example.com/a", favs.Favorites[0].URL)
	assert.False(t, favs.Favorites[0].SavedAt.IsZero())

	// The saved count shows up on the profile.
	rec = do(s, http.MethodGet, "/auth/me", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var me map[string]UserResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, 1, me["user"].FavoritesCount)
}

func TestDeleteFavorite_Idempotent(t *testing.T) {
	s := newTestServer(t, nil)
	tok := signUp(t, s, "reader@example.com")

	rec := do(s, http.MethodDelete, "/favorites?url=https%3A%2F%2Fexample.com%2Fgone", "", tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Article removed from favorites")

	rec = do(s, http.MethodDelete, "/favorites", "", tok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNews(t *testing.T) {
	pager := &fakePager{pages: map[string][]briefly.Article{
		"golang": {
			{URL: "https://example.com/1", Title: "One", Source: "Example"},
			{URL: "https://example.com/2", Title: "Two", Source: "Example"},
			{URL: "https://example.com/3", Title: "Three", Source: "Example"},
		},
	}}
	s := newTestServer(t, pager)

	rec := do(s, http.MethodGet, "/news?q=golang&max=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp NewsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Page)
	require.NotNil(t, resp.HasMore)
	assert.True(t, *resp.HasMore)
}

func TestGetNews_EmptyResultsNotNull(t *testing.T) {
	s := newTestServer(t, &fakePager{})

	rec := do(s, http.MethodGet, "/search?q=nothing", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestGetNews_BadParams(t *testing.T) {
	s := newTestServer(t, nil)

	for name, target := range map[string]string{
		"missing q":    "/news",
		"max too big":  "/news?q=golang&max=51",
		"max zero":     "/news?q=golang&max=0",
		"page too big": "/news?q=golang&page=11",
		"page not int": "/news?q=golang&page=later",
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(s, http.MethodGet, target, "", "")
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPersonalizedFeed(t *testing.T) {
	pager := &fakePager{pages: map[string][]briefly.Article{
		"golang": {{URL: "https://example.com/1", Title: "One", Source: "Example"}},
		"rust":   {{URL: "https://example.com/2", Title: "Two", Source: "Example"}},
	}}
	s := newTestServer(t, pager)
	tok := signUp(t, s, "reader@example.com")

	rec := do(s, http.MethodPut, "/topics", `["golang", "rust"]`, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/feed/personalized", "", tok)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp NewsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "golang", resp.Results[0].Topic)
	assert.Equal(t, "rust", resp.Results[1].Topic)
	assert.Equal(t, 2, resp.Total)
}

func TestPersonalizedFeed_NoTopics(t *testing.T) {
	pager := &fakePager{}
	s := newTestServer(t, pager)
	tok := signUp(t, s, "reader@example.com")

	rec := do(s, http.MethodGet, "/feed/personalized", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp NewsResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)
	assert.Equal(t, "No saved topics. Add topics to get personalized news.", resp.Message)
	assert.Empty(t, pager.queries)
}

func TestPersonalizedFeed_NoAPIKey(t *testing.T) {
	s := newTestServer(t, &fakePager{err: gnews.ErrNoAPIKey})
	tok := signUp(t, s, "reader@example.com")

	rec := do(s, http.MethodPut, "/topics", `["golang"]`, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/feed/personalized", "", tok)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "news provider is not configured")
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, nil)

	rec := do(s, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(s, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var ready struct {
		Ready  bool            `json:"ready"`
		Checks map[string]bool `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.True(t, ready.Ready)
	assert.True(t, ready.Checks["gnews_api_key"])
}

func TestReady_MissingUpstreamKey(t *testing.T) {
	store, err := jsonstore.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)

	s := NewServer(ServerConfig{
		AllowedOrigins:  []string{"*"},
		Environment:     "test",
		GNewsConfigured: false,
	}, store, token.NewService("test-secret", time.Hour), &fakePager{})

	rec := do(s, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var ready struct {
		Ready  bool            `json:"ready"`
		Checks map[string]bool `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))

	// A service without its upstream credential can't serve searches yet.
	assert.False(t, ready.Ready)
	assert.False(t, ready.Checks["gnews_api_key"])
	assert.True(t, ready.Checks["store"])
}

func TestProductionHidesInternalDetail(t *testing.T) {
	store, err := jsonstore.Open(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)

	pager := &fakePager{err: fmt.Errorf("upstream exploded: secret detail")}
	s := NewServer(ServerConfig{
		AllowedOrigins: []string{"*"},
		Environment:    "production",
	}, store, token.NewService("test-secret", time.Hour), pager)

	rec := do(s, http.MethodGet, "/news?q=golang", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
	assert.Contains(t, rec.Body.String(), "internal server error")

	// And /docs doesn't exist outside development.
	rec = do(s, http.MethodGet, "/docs", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
