// Package knowledge stores documents with vector embeddings and serves
// semantic similarity search over PostgreSQL + pgvector.
//
// The Store pairs an embedder with a Querier so that callers only deal
// in plain text: content is embedded on write, queries are embedded on
// read, and results come back ordered by cosine similarity.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/jaif/hal/internal/log"
)

// DefaultCollection groups documents that were added without an
// explicit collection name.
const DefaultCollection = "default"

// Search defaults. Vector queries get their own timeout so a slow
// index scan cannot hold a request open indefinitely.
const (
	DefaultTopK          = 4
	DefaultSearchTimeout = 10 * time.Second
)

var (
	// ErrEmptyContent indicates a document with no content to embed.
	ErrEmptyContent = errors.New("empty document content")

	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")
)

// Document is a unit of stored knowledge.
type Document struct {
	ID         string
	Collection string
	Content    string
	Metadata   map[string]any
	CreatedAt  time.Time
}

// Result is a search hit with its cosine similarity score in [0, 1].
type Result struct {
	Document Document
	Score    float64
}

// Querier defines the database operations the store needs. The
// interface lives with the consumer so tests can substitute an
// in-memory implementation.
type Querier interface {
	UpsertDocument(ctx context.Context, doc Document, embedding []float32) error
	SearchDocuments(ctx context.Context, collection string, embedding []float32, limit int) ([]Result, error)
	GetDocument(ctx context.Context, id string) (Document, error)
	ListDocuments(ctx context.Context, collection string, limit, offset int) ([]Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context, collection string) (int64, error)
}

// Store manages documents with vector search. Safe for concurrent use.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   log.Logger
}

// New creates a Store. A nil logger falls back to a no-op logger.
func New(queries Querier, embedder ai.Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		queries:  queries,
		embedder: embedder,
		logger:   logger,
	}
}

// Add embeds the document content and upserts it. The ID is required;
// an empty collection falls back to DefaultCollection.
func (s *Store) Add(ctx context.Context, doc Document) error {
	if doc.Content == "" {
		return fmt.Errorf("%w: document %q", ErrEmptyContent, doc.ID)
	}
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.Collection == "" {
		doc.Collection = DefaultCollection
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	embedding, err := s.embed(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embed document %q: %w", doc.ID, err)
	}

	if err := s.queries.UpsertDocument(ctx, doc, embedding); err != nil {
		return fmt.Errorf("upsert document %q: %w", doc.ID, err)
	}

	s.logger.Debug("document added",
		"id", doc.ID,
		"collection", doc.Collection,
		"content_length", len(doc.Content),
	)
	return nil
}

// AddAll embeds and stores each document, stopping at the first failure.
func (s *Store) AddAll(ctx context.Context, docs []Document) error {
	for i := range docs {
		if err := s.Add(ctx, docs[i]); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the documents most similar to the query, best first.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	embedding, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.queries.SearchDocuments(queryCtx, cfg.collection, embedding, cfg.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	s.logger.Debug("search complete",
		"collection", cfg.collection,
		"top_k", cfg.topK,
		"results", len(results),
	)
	return results, nil
}

// Get returns a single document by ID.
func (s *Store) Get(ctx context.Context, id string) (Document, error) {
	return s.queries.GetDocument(ctx, id)
}

// List returns documents in a collection, newest first.
func (s *Store) List(ctx context.Context, collection string, limit, offset int) ([]Document, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if limit <= 0 {
		limit = 50
	}
	return s.queries.ListDocuments(ctx, collection, limit, offset)
}

// Delete removes a document by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.queries.DeleteDocument(ctx, id)
}

// Count returns the number of documents in a collection.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	return s.queries.CountDocuments(ctx, collection)
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedder returned empty embedding")
	}
	return resp.Embeddings[0].Embedding, nil
}

type searchConfig struct {
	topK       int
	collection string
	timeout    time.Duration
}

// SearchOption customizes a Search call.
type SearchOption func(*searchConfig)

// WithTopK sets the number of results to return. Values below one fall
// back to DefaultTopK.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithCollection restricts the search to one collection.
func WithCollection(name string) SearchOption {
	return func(c *searchConfig) {
		if name != "" {
			c.collection = name
		}
	}
}

// WithSearchTimeout overrides the per-query timeout.
func WithSearchTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) searchConfig {
	cfg := searchConfig{
		topK:       DefaultTopK,
		collection: DefaultCollection,
		timeout:    DefaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
