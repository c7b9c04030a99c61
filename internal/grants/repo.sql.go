package grants

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed grant persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert records a grant. Inserting an existing tuple is a no-op.
func (r *Repository) Upsert(ctx context.Context, g Grant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO object_grants (principal_id, principal_kind, capability, object_type, object_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (principal_id, principal_kind, capability, object_type, object_id) DO NOTHING`,
		g.Principal.ID, g.Principal.Kind, g.Capability, g.Object.Type, g.Object.ID)
	return err
}

// Delete removes a grant. Deleting a missing tuple is a no-op.
func (r *Repository) Delete(ctx context.Context, g Grant) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM object_grants
		WHERE principal_id=$1 AND principal_kind=$2 AND capability=$3 AND object_type=$4 AND object_id=$5`,
		g.Principal.ID, g.Principal.Kind, g.Capability, g.Object.Type, g.Object.ID)
	return err
}

// DeleteByObject removes every grant referencing the object.
func (r *Repository) DeleteByObject(ctx context.Context, obj ObjectRef) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM object_grants WHERE object_type=$1 AND object_id=$2`, obj.Type, obj.ID)
	return err
}

// Capabilities returns the capabilities a principal holds on the object.
func (r *Repository) Capabilities(ctx context.Context, p PrincipalRef, obj ObjectRef) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT capability FROM object_grants
		WHERE principal_id=$1 AND principal_kind=$2 AND object_type=$3 AND object_id=$4
		ORDER BY capability`,
		p.ID, p.Kind, obj.Type, obj.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var caps []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		caps = append(caps, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return caps, nil
}

// SweepOrphans deletes grants whose object row no longer exists. Object
// deletion cleans its own grants inline; the sweep catches rows left behind
// by interrupted deletions.
func (r *Repository) SweepOrphans(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM object_grants g
		WHERE (g.object_type=$1 AND NOT EXISTS (SELECT 1 FROM articles a WHERE a.id=g.object_id))
		   OR (g.object_type=$2 AND NOT EXISTS (SELECT 1 FROM comments c WHERE c.id=g.object_id))`,
		ObjectArticle, ObjectComment)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PrincipalsWithCapability returns every principal holding the capability on
// the object.
func (r *Repository) PrincipalsWithCapability(ctx context.Context, capability string, obj ObjectRef) ([]PrincipalRef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT principal_id, principal_kind FROM object_grants
		WHERE capability=$1 AND object_type=$2 AND object_id=$3
		ORDER BY principal_kind, principal_id`,
		capability, obj.Type, obj.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var principals []PrincipalRef
	for rows.Next() {
		var p PrincipalRef
		if err := rows.Scan(&p.ID, &p.Kind); err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return principals, nil
}
