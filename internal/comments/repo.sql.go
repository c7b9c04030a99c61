package comments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkstream-blog/inkstream/internal/moderation"
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

// Create inserts a new comment and returns its id.
func (r *SQLRepository) Create(ctx context.Context, c Comment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO comments (article_id, author_id, parent_id, body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id`,
		c.ArticleID, c.AuthorID, c.ParentID, c.Body, c.Status).Scan(&id)
	return id, err
}

// Get fetches a comment by id.
func (r *SQLRepository) Get(ctx context.Context, id int64) (Comment, error) {
	var c Comment
	err := r.pool.QueryRow(ctx, `
		SELECT id, article_id, author_id, parent_id, body, status, created_at
		FROM comments WHERE id=$1`, id).
		Scan(&c.ID, &c.ArticleID, &c.AuthorID, &c.ParentID, &c.Body, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, shared.ErrNotFound
	}
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

// SetStatus records a moderation decision.
func (r *SQLRepository) SetStatus(ctx context.Context, id int64, status moderation.Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE comments SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a single comment row. Replies are deleted explicitly by
// the service, never by a database cascade.
func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListForArticle returns every comment on the article oldest first.
func (r *SQLRepository) ListForArticle(ctx context.Context, articleID int64) ([]Comment, error) {
	return r.list(ctx, `
		SELECT id, article_id, author_id, parent_id, body, status, created_at
		FROM comments WHERE article_id=$1 ORDER BY created_at, id`, articleID)
}

// ListReplies returns the direct replies of a comment oldest first.
func (r *SQLRepository) ListReplies(ctx context.Context, parentID int64) ([]Comment, error) {
	return r.list(ctx, `
		SELECT id, article_id, author_id, parent_id, body, status, created_at
		FROM comments WHERE parent_id=$1 ORDER BY created_at, id`, parentID)
}

func (r *SQLRepository) list(ctx context.Context, query string, arg any) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.AuthorID, &c.ParentID, &c.Body, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
