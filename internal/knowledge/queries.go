package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Queries implements Querier against PostgreSQL with the pgvector
// extension. Similarity uses the cosine distance operator, so scores
// come back as 1 - distance.
type Queries struct {
	pool *pgxpool.Pool
}

// NewQueries creates a Queries backed by the given connection pool.
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

func (q *Queries) UpsertDocument(ctx context.Context, doc Document, embedding []float32) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = q.pool.Exec(ctx, `
		INSERT INTO documents (id, collection, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			collection = EXCLUDED.collection,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		doc.ID, doc.Collection, doc.Content,
		pgvector.NewVector(embedding), metadata, doc.CreatedAt,
	)
	return err
}

func (q *Queries) SearchDocuments(ctx context.Context, collection string, embedding []float32, limit int) ([]Result, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, collection, content, metadata, created_at,
		       1 - (embedding <=> $1) AS score
		FROM documents
		WHERE collection = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(embedding), collection, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r        Result
			metadata []byte
		)
		if err := rows.Scan(
			&r.Document.ID, &r.Document.Collection, &r.Document.Content,
			&metadata, &r.Document.CreatedAt, &r.Score,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadata, &r.Document.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %q: %w", r.Document.ID, err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (q *Queries) GetDocument(ctx context.Context, id string) (Document, error) {
	var (
		doc      Document
		metadata []byte
	)
	err := q.pool.QueryRow(ctx, `
		SELECT id, collection, content, metadata, created_at
		FROM documents
		WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.Collection, &doc.Content, &metadata, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
		return Document{}, fmt.Errorf("unmarshal metadata for %q: %w", id, err)
	}
	return doc, nil
}

func (q *Queries) ListDocuments(ctx context.Context, collection string, limit, offset int) ([]Document, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, collection, content, metadata, created_at
		FROM documents
		WHERE collection = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		collection, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			doc      Document
			metadata []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Collection, &doc.Content, &metadata, &doc.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %q: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (q *Queries) DeleteDocument(ctx context.Context, id string) error {
	tag, err := q.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}

func (q *Queries) CountDocuments(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := q.pool.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE collection = $1`, collection,
	).Scan(&count)
	return count, err
}
