package sqlite

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/briefly/internal/briefly"
)

type favoriteRow struct {
	UserID  string    `db:"user_id"`
	URL     string    `db:"url"`
	Title   string    `db:"title"`
	Summary string    `db:"summary"`
	Image   string    `db:"image"`
	Source  string    `db:"source"`
	Date    string    `db:"date"`
	SavedAt time.Time `db:"saved_at"`
}

func (row favoriteRow) toFavorite() briefly.Favorite {
	return briefly.Favorite{
		Article: briefly.Article{
			URL:     row.URL,
			Title:   row.Title,
			Summary: row.Summary,
			Image:   row.Image,
			Date:    row.Date,
			Source:  row.Source,
		},
		SavedAt: row.SavedAt,
	}
}

func (r Repo) Favorites(ctx context.Context, userID string) ([]briefly.Favorite, error) {
	query, args, err := sq.Select("*").
		From("favorites").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("saved_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var rows []favoriteRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error fetching favorites: %s", err)
	}

	favs := make([]briefly.Favorite, 0, len(rows))
	for _, row := range rows {
		favs = append(favs, row.toFavorite())
	}

	return favs, nil
}

func (r Repo) AddFavorite(ctx context.Context, userID string, art briefly.Article) (bool, error) {
	const q = `INSERT INTO favorites (user_id, url, title, summary, image, source, date, saved_at)
	VALUES (:user_id, :url, :title, :summary, :image, :source, :date, :saved_at);`

	row := favoriteRow{
		UserID:  userID,
		URL:     art.URL,
		Title:   art.Title,
		Summary: art.Summary,
		Image:   art.Image,
		Source:  art.Source,
		Date:    art.Date,
		SavedAt: time.Now().UTC(),
	}
	_, err := r.db.NamedExecContext(ctx, q, row)
	if isConstraintErr(err) {
		// Already favorited is an expected outcome, not an error.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error inserting favorite: %s", err)
	}

	return true, nil
}

func (r Repo) RemoveFavorite(ctx context.Context, userID, url string) (bool, error) {
	const q = `DELETE FROM favorites WHERE user_id = ? AND url = ?;`

	res, err := r.db.ExecContext(ctx, q, userID, url)
	if err != nil {
		return false, fmt.Errorf("error deleting favorite: %s", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking deleted rows: %s", err)
	}

	return n > 0, nil
}
