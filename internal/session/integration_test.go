//go:build integration

package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/jaif/hal/internal/log"
	"github.com/jaif/hal/internal/testutil"
)

func TestChatLifecycleIntegration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())
	ctx := context.Background()

	chat, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if chat.ID == uuid.Nil {
		t.Fatal("Create returned nil UUID")
	}
	if chat.CreatedAt.IsZero() || chat.UpdatedAt.IsZero() {
		t.Error("timestamps not set on create")
	}

	got, err := store.Get(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != chat.ID {
		t.Errorf("Get ID = %s, want %s", got.ID, chat.ID)
	}

	err = store.AppendMessages(ctx, chat.ID,
		Message{Role: RoleUser, Content: "hello"},
		Message{Role: RoleAssistant, Content: "hi there"},
	)
	if err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	err = store.AppendMessages(ctx, chat.ID,
		Message{Role: RoleUser, Content: "how are you"},
	)
	if err != nil {
		t.Fatalf("AppendMessages second batch: %v", err)
	}

	messages, err := store.Messages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	for i, m := range messages {
		if m.Sequence != int32(i) {
			t.Errorf("message %d has sequence %d", i, m.Sequence)
		}
	}
	if messages[2].Content != "how are you" {
		t.Errorf("last message = %q, want the second batch", messages[2].Content)
	}

	history, err := store.History(ctx, chat.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if !strings.Contains(history, "user: hello") || !strings.Contains(history, "assistant: hi there") {
		t.Errorf("history missing turns: %q", history)
	}

	summary := Summary{Title: "Greetings", Topic: "smalltalk", Color: "#00FF00", Emotion: "😀🙂😎"}
	if err := store.UpdateSummary(ctx, chat.ID, summary); err != nil {
		t.Fatalf("UpdateSummary: %v", err)
	}
	got, err = store.Get(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Get after summary: %v", err)
	}
	if got.Title != summary.Title || got.Topic != summary.Topic || got.Color != summary.Color || got.Emotion != summary.Emotion {
		t.Errorf("summary not persisted: %+v", got)
	}
	if !got.UpdatedAt.After(chat.UpdatedAt) {
		t.Error("UpdateSummary should bump updated_at")
	}

	if err := store.Delete(ctx, chat.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, chat.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	// Messages must be gone with the chat.
	messages, err = store.Messages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Messages after delete: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("got %d orphaned messages after delete", len(messages))
	}
}

func TestChatListOrderingIntegration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())
	ctx := context.Background()

	first, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Touching the older chat moves it to the front.
	if err := store.AppendMessages(ctx, first.ID, Message{Role: RoleUser, Content: "ping"}); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}

	chats, err := store.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("got %d chats, want 2", len(chats))
	}
	if chats[0].ID != first.ID {
		t.Errorf("most recently updated chat should list first, got %s", chats[0].ID)
	}
	if chats[1].ID != second.ID {
		t.Errorf("second chat = %s, want %s", chats[1].ID, second.ID)
	}
}

func TestAppendMessagesRejectsBadRoleIntegration(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := New(db.Pool, log.NewNop())
	ctx := context.Background()

	chat, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	err = store.AppendMessages(ctx, chat.ID,
		Message{Role: RoleUser, Content: "fine"},
		Message{Role: "narrator", Content: "not fine"},
	)
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("AppendMessages = %v, want ErrInvalidRole", err)
	}

	// The whole batch must be rejected.
	messages, err := store.Messages(ctx, chat.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("got %d messages after rejected batch, want 0", len(messages))
	}
}
