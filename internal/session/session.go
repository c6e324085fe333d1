// Package session persists chat conversations and their ordered
// message history in PostgreSQL.
//
// A chat carries summary metadata (title, topic, color, emotion)
// refreshed after each exchange, and owns a sequence of messages whose
// order is enforced by a per-chat sequence number.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jaif/hal/internal/log"
)

// Message roles. The database enforces the same set.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrNotFound indicates the requested chat does not exist.
	ErrNotFound = errors.New("chat not found")

	// ErrInvalidRole indicates a message role outside the allowed set.
	ErrInvalidRole = errors.New("invalid message role")
)

// Chat is a stored conversation with its summary metadata.
type Chat struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Topic     string    `json:"topic"`
	Color     string    `json:"color"`
	Emotion   string    `json:"emotion"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn in a conversation.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    uuid.UUID `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sequence  int32     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is the metadata extracted from a conversation after an
// exchange: a short title, the dominant topic, a mood color and the
// user's emotional tone.
type Summary struct {
	Title   string `json:"title"`
	Topic   string `json:"topic"`
	Color   string `json:"color"`
	Emotion string `json:"emotion"`
}

// Store persists chats and messages. Safe for concurrent use.
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

// Create starts a new empty chat and returns it.
func (s *Store) Create(ctx context.Context) (Chat, error) {
	var chat Chat
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chats DEFAULT VALUES
		RETURNING id, coalesce(title, ''), coalesce(topic, ''),
		          coalesce(color, ''), coalesce(emotion, ''),
		          created_at, updated_at`,
	).Scan(&chat.ID, &chat.Title, &chat.Topic, &chat.Color, &chat.Emotion,
		&chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		return Chat{}, fmt.Errorf("create chat: %w", err)
	}

	s.logger.Debug("chat created", "chat_id", chat.ID)
	return chat, nil
}

// Get returns a chat by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Chat, error) {
	var chat Chat
	err := s.pool.QueryRow(ctx, `
		SELECT id, coalesce(title, ''), coalesce(topic, ''),
		       coalesce(color, ''), coalesce(emotion, ''),
		       created_at, updated_at
		FROM chats
		WHERE id = $1`,
		id,
	).Scan(&chat.ID, &chat.Title, &chat.Topic, &chat.Color, &chat.Emotion,
		&chat.CreatedAt, &chat.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chat{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Chat{}, fmt.Errorf("get chat %s: %w", id, err)
	}
	return chat, nil
}

// List returns chats ordered by most recent activity.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Chat, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, coalesce(title, ''), coalesce(topic, ''),
		       coalesce(color, ''), coalesce(emotion, ''),
		       created_at, updated_at
		FROM chats
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.ID, &chat.Title, &chat.Topic, &chat.Color,
			&chat.Emotion, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// Delete removes a chat and, through the foreign key cascade, all of
// its messages.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// UpdateSummary stores refreshed conversation metadata and bumps the
// chat's activity timestamp.
func (s *Store) UpdateSummary(ctx context.Context, id uuid.UUID, summary Summary) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chats
		SET title = $2, topic = $3, color = $4, emotion = $5, updated_at = now()
		WHERE id = $1`,
		id, summary.Title, summary.Topic, summary.Color, summary.Emotion,
	)
	if err != nil {
		return fmt.Errorf("update chat summary %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// AppendMessages stores messages at the end of the chat's history in
// a single transaction, preserving the order given. The chat's
// activity timestamp is bumped as part of the same transaction.
func (s *Store) AppendMessages(ctx context.Context, chatID uuid.UUID, messages ...Message) error {
	for _, m := range messages {
		if !validRole(m.Role) {
			return fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
		}
	}
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var next int32
	err = tx.QueryRow(ctx, `
		SELECT coalesce(max(sequence_number), -1) + 1
		FROM chat_messages
		WHERE chat_id = $1`,
		chatID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("next sequence for %s: %w", chatID, err)
	}

	for i, m := range messages {
		_, err = tx.Exec(ctx, `
			INSERT INTO chat_messages (chat_id, role, content, sequence_number)
			VALUES ($1, $2, $3, $4)`,
			chatID, m.Role, m.Content, next+int32(i),
		)
		if err != nil {
			return fmt.Errorf("insert message %d for %s: %w", i, chatID, err)
		}
	}

	if _, err = tx.Exec(ctx, `UPDATE chats SET updated_at = now() WHERE id = $1`, chatID); err != nil {
		return fmt.Errorf("touch chat %s: %w", chatID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("messages appended", "chat_id", chatID, "count", len(messages))
	return nil
}

// Messages returns the full history of a chat in conversation order.
func (s *Store) Messages(ctx context.Context, chatID uuid.UUID) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, role, content, sequence_number, created_at
		FROM chat_messages
		WHERE chat_id = $1
		ORDER BY sequence_number`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", chatID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &m.Sequence, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// History renders a chat's messages as a plain transcript suitable for
// prompt stuffing, one "role: content" line per message.
func (s *Store) History(ctx context.Context, chatID uuid.UUID) (string, error) {
	messages, err := s.Messages(ctx, chatID)
	if err != nil {
		return "", err
	}
	return FormatHistory(messages), nil
}

// FormatHistory renders messages as a transcript, one line per turn.
func FormatHistory(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func validRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}
