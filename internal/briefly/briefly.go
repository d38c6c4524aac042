// Package briefly holds the domain types and storage contracts for the
// personalized news feed.
package briefly

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")
)

type (
	// User is a registered account along with its saved topics.
	User struct {
		ID           string    `json:"id"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		PasswordHash string    `json:"password_hash"`
		SavedTopics  []string  `json:"saved_topics"`
		CreatedAt    time.Time `json:"created_at"`
	}

	// Article is a normalized search result from the upstream provider.
	//
	// It is transient: only favorited snapshots are ever persisted.
	// Image, Summary, Date and Content may be empty when the provider
	// omits them. Topic is set only when the article came through the
	// personalized feed.
	Article struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Summary string `json:"summary"`
		Content string `json:"content,omitempty"`
		Image   string `json:"image,omitempty"`
		Date    string `json:"date,omitempty"`
		Source  string `json:"source"`
		Topic   string `json:"topic,omitempty"`
	}

	// Favorite is an article snapshot saved by a user.
	Favorite struct {
		Article
		SavedAt time.Time `json:"saved_at"`
	}

	// Repository is what every storage backend implements.
	//
	// Lookups report absence with [ErrNotFound]; duplicate emails with
	// [ErrConflict]. Mutations persist durably before returning.
	Repository interface {
		CreateUser(ctx context.Context, email, name, passwordHash string) (User, error)
		UserByEmail(ctx context.Context, email string) (User, error)
		User(ctx context.Context, id string) (User, error)
		// UpdateTopics replaces the user's topic list wholesale.
		UpdateTopics(ctx context.Context, userID string, topics []string) (User, error)
		Favorites(ctx context.Context, userID string) ([]Favorite, error)
		// AddFavorite reports false when the URL is already saved for the user.
		AddFavorite(ctx context.Context, userID string, art Article) (bool, error)
		// RemoveFavorite reports false when the URL was not saved.
		RemoveFavorite(ctx context.Context, userID, url string) (bool, error)
	}
)
