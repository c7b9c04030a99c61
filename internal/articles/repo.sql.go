package articles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkstream-blog/inkstream/internal/counter"
	"github.com/inkstream-blog/inkstream/internal/shared"
)

// SQLRepository provides PostgreSQL backed persistence.
type SQLRepository struct {
	pool *pgxpool.Pool
}

// NewSQLRepository constructs a repository.
func NewSQLRepository(pool *pgxpool.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// Create inserts a new article and returns its id.
func (r *SQLRepository) Create(ctx context.Context, a Article) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO articles (title, body, author_id, status, view_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		RETURNING id`,
		a.Title, a.Body, a.AuthorID, a.Status).Scan(&id)
	return id, err
}

// Get fetches an article by id.
func (r *SQLRepository) Get(ctx context.Context, id int64) (Article, error) {
	var a Article
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, body, author_id, status, view_count, created_at, updated_at
		FROM articles WHERE id=$1`, id).
		Scan(&a.ID, &a.Title, &a.Body, &a.AuthorID, &a.Status, &a.ViewCount, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Article{}, shared.ErrNotFound
	}
	if err != nil {
		return Article{}, err
	}
	return a, nil
}

// Update stores new title and body.
func (r *SQLRepository) Update(ctx context.Context, a Article) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE articles SET title=$2, body=$3, updated_at=NOW() WHERE id=$1`,
		a.ID, a.Title, a.Body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetStatus moves the article between draft and published.
func (r *SQLRepository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE articles SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the article row.
func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM articles WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns all articles newest first.
func (r *SQLRepository) List(ctx context.Context) ([]Article, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, body, author_id, status, view_count, created_at, updated_at
		FROM articles ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.AuthorID, &a.Status, &a.ViewCount, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// IncrementViews advances the view counter in a single atomic statement.
// The WHERE clause keeps draft counters frozen.
func (r *SQLRepository) IncrementViews(ctx context.Context, id int64) (int64, bool, error) {
	var views int64
	err := r.pool.QueryRow(ctx, `
		UPDATE articles SET view_count = view_count + 1
		WHERE id=$1 AND status='published'
		RETURNING view_count`, id).Scan(&views)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return views, true, nil
}

// TopViewed returns the most viewed published articles.
func (r *SQLRepository) TopViewed(ctx context.Context, limit int) ([]counter.HotEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, view_count FROM articles
		WHERE status='published'
		ORDER BY view_count DESC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []counter.HotEntry
	for rows.Next() {
		var e counter.HotEntry
		if err := rows.Scan(&e.ArticleID, &e.Title, &e.ViewCount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
