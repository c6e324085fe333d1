package chains

import (
	"context"
	"strings"
	"testing"

	"github.com/jaif/hal/internal/session"
	"github.com/jaif/hal/internal/testutil"
)

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    session.Summary
		wantErr bool
	}{
		{
			name:   "plain JSON",
			output: `{"title":"A chat about sponges","topic":"sponges","color":"#ffdd00","emotion":"😀🌊🍍"}`,
			want: session.Summary{
				Title:   "A chat about sponges",
				Topic:   "sponges",
				Color:   "#ffdd00",
				Emotion: "😀🌊🍍",
			},
		},
		{
			name: "fenced JSON",
			output: "```json\n" +
				`{"title":"t","topic":"x","color":"#000000","emotion":"🙂🙂🙂"}` +
				"\n```",
			want: session.Summary{Title: "t", Topic: "x", Color: "#000000", Emotion: "🙂🙂🙂"},
		},
		{
			name:   "JSON with surrounding prose",
			output: `Sure! Here is the summary: {"title":"t","topic":"x"} Hope that helps.`,
			want:   session.Summary{Title: "t", Topic: "x"},
		},
		{
			name:    "not JSON",
			output:  "I had a lovely conversation.",
			wantErr: true,
		},
		{
			name:    "empty object",
			output:  `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSummary(tt.output)
			if tt.wantErr {
				if err == nil {
					t.Fatal("parseSummary() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSummary() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseSummary() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	gen := testutil.NewMockGenerator(
		`{"title":"Joke request","topic":"jokes","color":"#ff00ff","emotion":"😂😂😂"}`)

	messages := []session.Message{
		{Role: session.RoleUser, Content: "tell me a joke"},
		{Role: session.RoleAssistant, Content: "why did the gopher cross the road?"},
	}

	summary, err := Summarize(context.Background(), gen, messages)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary.Topic != "jokes" {
		t.Errorf("topic = %q, want %q", summary.Topic, "jokes")
	}

	prompt := gen.Calls()[0].Prompt
	if !strings.Contains(prompt, "user: tell me a joke") {
		t.Error("prompt is missing the conversation transcript")
	}
	if !strings.Contains(prompt, "hex color code") {
		t.Error("prompt is missing the format instructions")
	}
}
