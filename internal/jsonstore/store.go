// Package jsonstore persists users and favorites in a single JSON document
// on disk.
//
// It is the default backend: a small deployment's worth of accounts fits
// comfortably in one file, and every mutation is written through before it
// returns.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdholdren/briefly/internal/briefly"
)

const userNamespace = "-usr"

// Layout of the persisted document: users keyed by lowercased email,
// favorites keyed by user ID.
type document struct {
	Users     map[string]briefly.User       `json:"users"`
	Favorites map[string][]briefly.Favorite `json:"favorites"`
}

// Store implements [briefly.Repository] over one JSON file.
type Store struct {
	path string

	mu   sync.Mutex
	data document
}

var _ briefly.Repository = (*Store)(nil)

// Open loads the document at path, creating an empty one (and its parent
// directory) if nothing is there yet.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("error creating data dir: %w", err)
	}

	s := &Store{
		path: path,
		data: document{
			Users:     map[string]briefly.User{},
			Favorites: map[string][]briefly.Favorite{},
		},
	}

	byts, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading data file: %w", err)
	}
	if err := json.Unmarshal(byts, &s.data); err != nil {
		return nil, fmt.Errorf("error parsing data file: %w", err)
	}
	if s.data.Users == nil {
		s.data.Users = map[string]briefly.User{}
	}
	if s.data.Favorites == nil {
		s.data.Favorites = map[string][]briefly.Favorite{}
	}

	return s, nil
}

// Writes the document out. Must be called with the lock held.
func (s *Store) save() error {
	byts, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding data file: %w", err)
	}

	// Write to a sibling temp file and rename so a crash mid-write can't
	// truncate the document.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, byts, 0o600); err != nil {
		return fmt.Errorf("error writing data file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("error replacing data file: %w", err)
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string) (briefly.User, error) {
	email = normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[email]; ok {
		return briefly.User{}, fmt.Errorf("email already registered: %w", briefly.ErrConflict)
	}

	usr := briefly.User{
		ID:           uuid.NewString() + userNamespace,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		SavedTopics:  []string{},
		CreatedAt:    time.Now().UTC(),
	}
	s.data.Users[email] = usr
	s.data.Favorites[usr.ID] = []briefly.Favorite{}

	if err := s.save(); err != nil {
		delete(s.data.Users, email)
		delete(s.data.Favorites, usr.ID)
		return briefly.User{}, err
	}

	return copyUser(usr), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (briefly.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	usr, ok := s.data.Users[normalizeEmail(email)]
	if !ok {
		return briefly.User{}, briefly.ErrNotFound
	}

	return copyUser(usr), nil
}

func (s *Store) User(ctx context.Context, id string) (briefly.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, usr := range s.data.Users {
		if usr.ID == id {
			return copyUser(usr), nil
		}
	}

	return briefly.User{}, briefly.ErrNotFound
}

func (s *Store) UpdateTopics(ctx context.Context, userID string, topics []string) (briefly.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for email, usr := range s.data.Users {
		if usr.ID != userID {
			continue
		}

		prev := usr
		usr.SavedTopics = append([]string{}, topics...)
		s.data.Users[email] = usr

		if err := s.save(); err != nil {
			s.data.Users[email] = prev
			return briefly.User{}, err
		}

		return copyUser(usr), nil
	}

	return briefly.User{}, briefly.ErrNotFound
}

func (s *Store) Favorites(ctx context.Context, userID string) ([]briefly.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]briefly.Favorite{}, s.data.Favorites[userID]...), nil
}

func (s *Store) AddFavorite(ctx context.Context, userID string, art briefly.Article) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs := s.data.Favorites[userID]
	for _, fav := range favs {
		if fav.URL == art.URL {
			// Already favorited is an expected outcome, not an error.
			return false, nil
		}
	}

	s.data.Favorites[userID] = append(favs, briefly.Favorite{
		Article: art,
		SavedAt: time.Now().UTC(),
	})

	if err := s.save(); err != nil {
		s.data.Favorites[userID] = favs
		return false, err
	}

	return true, nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	favs := s.data.Favorites[userID]
	kept := favs[:0:0]
	for _, fav := range favs {
		if fav.URL != url {
			kept = append(kept, fav)
		}
	}
	if len(kept) == len(favs) {
		return false, nil
	}

	s.data.Favorites[userID] = kept
	if err := s.save(); err != nil {
		s.data.Favorites[userID] = favs
		return false, err
	}

	return true, nil
}

func copyUser(usr briefly.User) briefly.User {
	usr.SavedTopics = append([]string{}, usr.SavedTopics...)
	return usr
}
