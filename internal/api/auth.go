package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jdholdren/briefly/internal/briefly"
	brferrs "github.com/jdholdren/briefly/internal/errors"
	"github.com/jdholdren/briefly/internal/serverutil"
)

const bcryptCost = 12

type SignupReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (req SignupReq) Validate() error {
	var details []brferrs.Detail

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if len(email) < 5 || !validEmail(email) {
		details = append(details, brferrs.Detail{Field: "email", Error: "invalid email format"})
	}
	if len(req.Password) < 6 {
		details = append(details, brferrs.Detail{Field: "password", Error: "must be at least 6 characters"})
	}
	if strings.TrimSpace(req.Name) == "" {
		details = append(details, brferrs.Detail{Field: "name", Error: "is required"})
	}

	if len(details) > 0 {
		return brferrs.E("invalid signup request", http.StatusBadRequest, details)
	}
	return nil
}

// Enough of a check to catch typos; the upstream mail exchange is the real
// arbiter of what delivers.
func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}

	return strings.Contains(email[at+1:], ".")
}

type UserResp struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	Name           string   `json:"name"`
	SavedTopics    []string `json:"saved_topics"`
	FavoritesCount int      `json:"favorites_count"`
}

func (s *Server) userResp(ctx context.Context, usr briefly.User) (UserResp, error) {
	favs, err := s.repo.Favorites(ctx, usr.ID)
	if err != nil {
		return UserResp{}, err
	}

	return UserResp{
		ID:             usr.ID,
		Email:          usr.Email,
		Name:           usr.Name,
		SavedTopics:    usr.SavedTopics,
		FavoritesCount: len(favs),
	}, nil
}

type AuthResp struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    UserResp `json:"user"`
}

func (s *Server) postSignup(w http.ResponseWriter, r *http.Request) error {
	body, err := serverutil.DecodeValid[SignupReq](r.Body)
	if err != nil {
		return err
	}

	var (
		ctx   = r.Context()
		email = strings.ToLower(strings.TrimSpace(body.Email))
	)

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcryptCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	usr, err := s.repo.CreateUser(ctx, email, strings.TrimSpace(body.Name), string(hash))
	if errors.Is(err, briefly.ErrConflict) {
		return brferrs.E("email already registered", http.StatusConflict)
	}
	if err != nil {
		return err
	}

	tok, err := s.tokens.Issue(usr.ID, usr.Email)
	if err != nil {
		return err
	}

	resp, err := s.userResp(ctx, usr)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusCreated, AuthResp{
		Message: "Account created successfully",
		Token:   tok,
		User:    resp,
	})
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (req LoginReq) Validate() error {
	if req.Email == "" || req.Password == "" {
		return brferrs.E("email and password are required", http.StatusBadRequest)
	}
	return nil
}

func (s *Server) postLogin(w http.ResponseWriter, r *http.Request) error {
	body, err := serverutil.DecodeValid[LoginReq](r.Body)
	if err != nil {
		return err
	}

	ctx := r.Context()

	usr, err := s.repo.UserByEmail(ctx, body.Email)
	if errors.Is(err, briefly.ErrNotFound) {
		return brferrs.E("invalid email or password", http.StatusUnauthorized)
	}
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(body.Password)) != nil {
		return brferrs.E("invalid email or password", http.StatusUnauthorized)
	}

	tok, err := s.tokens.Issue(usr.ID, usr.Email)
	if err != nil {
		return err
	}

	resp, err := s.userResp(ctx, usr)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, AuthResp{
		Message: "Login successful",
		Token:   tok,
		User:    resp,
	})
}

// Tokens are stateless, so logout is an acknowledgement that the client
// should discard theirs.
func (s *Server) postLogout(w http.ResponseWriter, r *http.Request) error {
	return serverutil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) error {
	usr, err := s.currentUser(r)
	if err != nil {
		return err
	}

	resp, err := s.userResp(r.Context(), usr)
	if err != nil {
		return err
	}

	return serverutil.WriteJSON(w, http.StatusOK, map[string]UserResp{"user": resp})
}
