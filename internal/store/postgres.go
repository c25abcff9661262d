package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campus-dues/backend/pkg/apperr"
)

// PostgresBackend stores documents as JSONB rows in the documents table
// created by pkg/database migrations.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend creates a Postgres-backed document store.
func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

// Name implements Backend.
func (p *PostgresBackend) Name() string { return "postgres" }

// List implements Backend.
func (p *PostgresBackend) List(ctx context.Context, collection string) ([]Document, error) {
	const q = `SELECT id, body FROM documents WHERE collection = $1 ORDER BY created_at, id`
	rows, err := p.pool.Query(ctx, q, collection)
	if err != nil {
		return nil, apperr.Upstream(p.Name(), err)
	}
	defer rows.Close()
	var list []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Body); err != nil {
			return nil, apperr.Upstream(p.Name(), err)
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Upstream(p.Name(), err)
	}
	return list, nil
}

// Get implements Backend.
func (p *PostgresBackend) Get(ctx context.Context, collection, id string) (Document, error) {
	const q = `SELECT id, body FROM documents WHERE collection = $1 AND id = $2`
	var d Document
	err := p.pool.QueryRow(ctx, q, collection, id).Scan(&d.ID, &d.Body)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, apperr.NotFound(collection + "/" + id)
	}
	if err != nil {
		return Document{}, apperr.Upstream(p.Name(), err)
	}
	return d, nil
}

// Put implements Backend.
func (p *PostgresBackend) Put(ctx context.Context, collection string, doc Document) error {
	const q = `INSERT INTO documents (collection, id, body)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`
	if _, err := p.pool.Exec(ctx, q, collection, doc.ID, []byte(doc.Body)); err != nil {
		return apperr.Upstream(p.Name(), err)
	}
	return nil
}

// Delete implements Backend.
func (p *PostgresBackend) Delete(ctx context.Context, collection, id string) error {
	const q = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	if _, err := p.pool.Exec(ctx, q, collection, id); err != nil {
		return apperr.Upstream(p.Name(), err)
	}
	return nil
}
