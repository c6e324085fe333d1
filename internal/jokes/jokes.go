// Package jokes persists generated jokes together with the reasoning
// that produced them.
package jokes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jaif/hal/internal/log"
)

// ErrNotFound indicates the requested joke does not exist.
var ErrNotFound = errors.New("joke not found")

// Joke is a stored punchline with its generation trace.
type Joke struct {
	ID             uuid.UUID `json:"id"`
	Joke           string    `json:"joke"`
	ChainOfThought string    `json:"chain_of_thought"`
	Topic          string    `json:"topic"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists jokes. Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a Store. A nil logger falls back to a no-op logger.
func New(pool *pgxpool.Pool, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// Save stores a joke and returns it with its assigned ID.
func (s *Store) Save(ctx context.Context, joke Joke) (Joke, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO jokes (joke, chain_of_thought, topic)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		joke.Joke, joke.ChainOfThought, joke.Topic,
	).Scan(&joke.ID, &joke.CreatedAt)
	if err != nil {
		return Joke{}, fmt.Errorf("save joke: %w", err)
	}

	s.logger.Debug("joke saved", "id", joke.ID, "topic", joke.Topic)
	return joke, nil
}

// SaveAll stores jokes one by one, stopping at the first failure and
// returning the saved rows so far.
func (s *Store) SaveAll(ctx context.Context, items []Joke) ([]Joke, error) {
	saved := make([]Joke, 0, len(items))
	for _, j := range items {
		row, err := s.Save(ctx, j)
		if err != nil {
			return saved, err
		}
		saved = append(saved, row)
	}
	return saved, nil
}

// Get returns a joke by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Joke, error) {
	var joke Joke
	err := s.pool.QueryRow(ctx, `
		SELECT id, joke, chain_of_thought, topic, created_at
		FROM jokes
		WHERE id = $1`,
		id,
	).Scan(&joke.ID, &joke.Joke, &joke.ChainOfThought, &joke.Topic, &joke.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Joke{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Joke{}, fmt.Errorf("get joke %s: %w", id, err)
	}
	return joke, nil
}

// List returns jokes, newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Joke, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, joke, chain_of_thought, topic, created_at
		FROM jokes
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list jokes: %w", err)
	}
	defer rows.Close()

	var items []Joke
	for rows.Next() {
		var j Joke
		if err := rows.Scan(&j.ID, &j.Joke, &j.ChainOfThought, &j.Topic, &j.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, j)
	}
	return items, rows.Err()
}

// Delete removes a joke by ID.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM jokes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete joke %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
