package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/jaif/hal/internal/model"
	"github.com/jaif/hal/internal/testutil"
)

func unmarshalJSON(t *testing.T, data string, v any) error {
	t.Helper()
	return json.Unmarshal([]byte(data), v)
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	Event string
	Data  string
}

// readSSE parses all events from an SSE response body.
func readSSE(t *testing.T, body *bufio.Scanner) []sseEvent {
	t.Helper()

	var (
		events  []sseEvent
		current sseEvent
	)
	for body.Scan() {
		line := body.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.Event != "" {
				events = append(events, current)
				current = sseEvent{}
			}
		}
	}
	return events
}

func TestChatStreamDeliversChunksAndDone(t *testing.T) {
	gen := testutil.NewMockGenerator("three word response")
	ts := newTestServer(t, gen)

	req := authedRequest(t, http.MethodPost, ts.URL+"/api/v1/chat/stream",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	events := readSSE(t, bufio.NewScanner(resp.Body))
	if len(events) == 0 {
		t.Fatal("no SSE events received")
	}

	last := events[len(events)-1]
	if last.Event != EventDone {
		t.Fatalf("last event = %q, want %q", last.Event, EventDone)
	}
	if !strings.Contains(last.Data, "three word response") {
		t.Errorf("done payload = %q, want the full response", last.Data)
	}

	var chunkText strings.Builder
	for _, ev := range events[:len(events)-1] {
		if ev.Event != EventChunk {
			t.Errorf("unexpected event %q before done", ev.Event)
		}
		var payload ChunkPayload
		if err := unmarshalJSON(t, ev.Data, &payload); err != nil {
			t.Fatalf("chunk payload: %v", err)
		}
		chunkText.WriteString(payload.Text)
	}
	if chunkText.String() != "three word response" {
		t.Errorf("concatenated chunks = %q, want the full response", chunkText.String())
	}
}

func TestChatStreamReportsModelError(t *testing.T) {
	gen := testutil.NewMockGenerator("unused")
	gen.FailWith(model.ErrRateLimited)
	ts := newTestServer(t, gen)

	req := authedRequest(t, http.MethodPost, ts.URL+"/api/v1/chat/stream",
		`{"messages":[{"role":"user","content":"hi"}]}`)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	events := readSSE(t, bufio.NewScanner(resp.Body))
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 error event", len(events))
	}
	if events[0].Event != EventError {
		t.Fatalf("event = %q, want %q", events[0].Event, EventError)
	}

	var payload ErrorPayload
	if err := unmarshalJSON(t, events[0].Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Code != "RATE_LIMITED" {
		t.Errorf("error code = %q, want RATE_LIMITED", payload.Code)
	}
}

func TestChatStreamInvalidBody(t *testing.T) {
	ts := newTestServer(t, testutil.NewMockGenerator("ok"))

	req := authedRequest(t, http.MethodPost, ts.URL+"/api/v1/chat/stream", `garbage`)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	events := readSSE(t, bufio.NewScanner(resp.Body))
	if len(events) != 1 || events[0].Event != EventError {
		t.Fatalf("events = %v, want a single error event", events)
	}
}

func TestMapModelError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{model.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{model.ErrAuthFailed, http.StatusBadGateway, "AUTH_FAILED"},
		{model.ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{model.ErrUpstreamUnavailable, http.StatusBadGateway, "MODEL_UNAVAILABLE"},
	}
	for _, tt := range tests {
		status, code := mapModelError(tt.err)
		if status != tt.wantStatus || code != tt.wantCode {
			t.Errorf("mapModelError(%v) = (%d, %q), want (%d, %q)",
				tt.err, status, code, tt.wantStatus, tt.wantCode)
		}
	}
}
