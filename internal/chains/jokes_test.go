package chains

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jaif/hal/internal/testutil"
)

func TestParseTopics(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   []string
	}{
		{
			name: "padded names",
			output: `<topics>
  <name>
    programming
  </name>
  <name>
    food
  </name>
</topics>`,
			want: []string{"programming", "food"},
		},
		{
			name:   "single line",
			output: `<topics><name>animals</name></topics>`,
			want:   []string{"animals"},
		},
		{
			name:   "no topics",
			output: "I cannot help with that.",
			want:   nil,
		},
		{
			name:   "empty names dropped",
			output: `<topics><name>  </name><name>space</name></topics>`,
			want:   []string{"space"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTopics(tt.output)
			if len(got) != len(tt.want) {
				t.Fatalf("parseTopics() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("topic[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseJokes(t *testing.T) {
	output := `<response>
  <joke>
    Why don't skeletons fight? They don't have the guts.
  </joke>
  <reason>
    Wordplay on "guts".
  </reason>
  <joke>
    Second joke.
  </joke>
</response>`

	jokes := parseJokes("anatomy", output)
	if len(jokes) != 2 {
		t.Fatalf("got %d jokes, want 2", len(jokes))
	}
	if jokes[0].Topic != "anatomy" {
		t.Errorf("topic = %q, want %q", jokes[0].Topic, "anatomy")
	}
	if !strings.Contains(jokes[0].Joke, "skeletons") {
		t.Errorf("joke = %q, want the skeleton joke", jokes[0].Joke)
	}
	if !strings.Contains(jokes[0].ChainOfThought, "guts") {
		t.Errorf("reason = %q, want the wordplay note", jokes[0].ChainOfThought)
	}
	if jokes[1].ChainOfThought != "" {
		t.Errorf("unpaired joke got reason %q, want empty", jokes[1].ChainOfThought)
	}
}

func TestParseJokesFallback(t *testing.T) {
	jokes := parseJokes("animals", "Here is a joke without any tags.")
	if len(jokes) != 1 {
		t.Fatalf("got %d jokes, want 1", len(jokes))
	}
	if jokes[0].Joke != "Here is a joke without any tags." {
		t.Errorf("joke = %q, want the raw text", jokes[0].Joke)
	}

	if got := parseJokes("animals", "   "); got != nil {
		t.Errorf("blank output produced %v, want nil", got)
	}
}

func TestJokeGeneratorFanOut(t *testing.T) {
	gen := testutil.NewMockGenerator("<joke>generic</joke><reason>because</reason>")
	gen.AddResponse("topics for jokes", `<topics><name>cats</name><name>space</name></topics>`)
	gen.AddResponse("jokes about cats", `<joke>cat joke</joke><reason>cats</reason>`)
	gen.AddResponse("jokes about space", `<joke>space joke</joke><reason>space</reason>`)

	jg := NewJokeGenerator(gen)
	jokes, failures := jg.Generate(context.Background(), 2)
	if len(failures) != 0 {
		t.Fatalf("failures = %v, want none", failures)
	}
	if len(jokes) != 2 {
		t.Fatalf("got %d jokes, want 2", len(jokes))
	}

	byTopic := map[string]string{}
	for _, j := range jokes {
		byTopic[j.Topic] = j.Joke
	}
	if byTopic["cats"] != "cat joke" || byTopic["space"] != "space joke" {
		t.Errorf("jokes by topic = %v", byTopic)
	}
}

func TestJokeGeneratorTopicFailureIsolated(t *testing.T) {
	boom := errors.New("model exploded")

	gen := testutil.NewMockGenerator("<joke>ok</joke>")
	gen.AddResponse("topics for jokes", `<topics><name>cats</name><name>cursed</name></topics>`)
	gen.AddError("jokes about cursed", boom)

	jg := NewJokeGenerator(gen)
	jokes, failures := jg.Generate(context.Background(), 2)

	if len(jokes) != 1 || jokes[0].Topic != "cats" {
		t.Errorf("jokes = %v, want only the cats topic", jokes)
	}
	if len(failures) != 1 || !errors.Is(failures[0], boom) {
		t.Errorf("failures = %v, want the cursed topic failure", failures)
	}
}

func TestJokeGeneratorTopicGenerationFailure(t *testing.T) {
	boom := errors.New("quota exhausted")
	gen := testutil.NewMockGenerator("x")
	gen.AddError("topics for jokes", boom)

	jg := NewJokeGenerator(gen)
	jokes, failures := jg.Generate(context.Background(), 3)
	if jokes != nil {
		t.Errorf("jokes = %v, want nil", jokes)
	}
	if len(failures) != 1 || !errors.Is(failures[0], boom) {
		t.Errorf("failures = %v, want the topic generation failure", failures)
	}
}
