package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"

	"github.com/jdholdren/briefly/internal/briefly"
)

const userNamespace = "-usr"

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	SavedTopics  string    `db:"saved_topics"`
	CreatedAt    time.Time `db:"created_at"`
}

func (row userRow) toUser() (briefly.User, error) {
	var topics []string
	if err := json.Unmarshal([]byte(row.SavedTopics), &topics); err != nil {
		return briefly.User{}, fmt.Errorf("error parsing saved topics: %w", err)
	}
	if topics == nil {
		topics = []string{}
	}

	return briefly.User{
		ID:           row.ID,
		Email:        row.Email,
		Name:         row.Name,
		PasswordHash: row.PasswordHash,
		SavedTopics:  topics,
		CreatedAt:    row.CreatedAt,
	}, nil
}

func (r Repo) CreateUser(ctx context.Context, email, name, passwordHash string) (briefly.User, error) {
	const q = `INSERT INTO users (id, email, name, password_hash, saved_topics, created_at)
	VALUES (:id, :email, :name, :password_hash, :saved_topics, :created_at);`

	row := userRow{
		ID:           uuid.NewString() + userNamespace,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         name,
		PasswordHash: passwordHash,
		SavedTopics:  "[]",
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.db.NamedExecContext(ctx, q, row)
	if isConstraintErr(err) {
		return briefly.User{}, fmt.Errorf("email already registered: %w", briefly.ErrConflict)
	}
	if err != nil {
		return briefly.User{}, fmt.Errorf("error inserting user: %s", err)
	}

	return row.toUser()
}

func (r Repo) UserByEmail(ctx context.Context, email string) (briefly.User, error) {
	const q = `SELECT * FROM users WHERE email = ?;`

	var row userRow
	err := r.db.GetContext(ctx, &row, q, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return briefly.User{}, briefly.ErrNotFound
	}
	if err != nil {
		return briefly.User{}, fmt.Errorf("error fetching user: %s", err)
	}

	return row.toUser()
}

func (r Repo) User(ctx context.Context, id string) (briefly.User, error) {
	const q = `SELECT * FROM users WHERE id = ?;`

	var row userRow
	err := r.db.GetContext(ctx, &row, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return briefly.User{}, briefly.ErrNotFound
	}
	if err != nil {
		return briefly.User{}, fmt.Errorf("error fetching user: %s", err)
	}

	return row.toUser()
}

func (r Repo) UpdateTopics(ctx context.Context, userID string, topics []string) (briefly.User, error) {
	const q = `UPDATE users SET saved_topics = ? WHERE id = ?;`

	if topics == nil {
		topics = []string{}
	}
	byts, err := json.Marshal(topics)
	if err != nil {
		return briefly.User{}, fmt.Errorf("error encoding topics: %s", err)
	}

	res, err := r.db.ExecContext(ctx, q, string(byts), userID)
	if err != nil {
		return briefly.User{}, fmt.Errorf("error updating topics: %s", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return briefly.User{}, briefly.ErrNotFound
	}

	return r.User(ctx, userID)
}

// Both unique-index and primary-key violations surface here.
func isConstraintErr(err error) bool {
	sqliteErr := &sqlite.Error{}
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.Code() == 2067 || sqliteErr.Code() == 1555
}
