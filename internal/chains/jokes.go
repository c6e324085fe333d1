package chains

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jaif/hal/internal/model"
	"github.com/jaif/hal/internal/pipeline"
	"github.com/jaif/hal/internal/prompt"
)

// GeneratedJoke is one item produced by the joke generation fan-out.
type GeneratedJoke struct {
	Topic          string `json:"topic"`
	Joke           string `json:"joke"`
	ChainOfThought string `json:"chain_of_thought"`
}

var topicGenerationPrompt = prompt.MustNew(
	`Generate {n} topics for jokes. For example: animal, food, programming. Please output in XML. Example: <topics>
  <name>
    programming
  </name>
  <name>
    food
  </name>
  <name>
    animals
  </name>
</topics>
Generate {n} new topics for fun jokes! Output only XML.
`).Named("topic generation")

var jokeExampleGuide = &prompt.FewShot{
	Prefix: "<example>",
	Suffix: "</example>",
	Example: prompt.MustNew(`  <joke>
    {joke}
  </joke>
  <reason>
    {chainOfThought}
  </reason>`).Named("joke xml example"),
	Examples: punJokes,
}

var jokeGenerationPrompt = prompt.MustCompose(
	prompt.MustNew("{task}{example}{instructions}").Named("joke generation final"),
	prompt.Slot{Name: "task", Child: prompt.MustNew(
		`Produce 5 exemplary jokes about {name}. Also include reasoning for why they are funny. Here is an example of previous jokes that the user enjoyed:`).Named("joke task")},
	prompt.Slot{Name: "example", Child: jokeExampleGuide},
	prompt.Slot{Name: "instructions", Child: prompt.MustNew(
		`Generate new {name} jokes that fit with the user's sense of humor. Respond in XML with <response></response> tags. Wrap each joke in <joke></joke> and its reasoning in <reason></reason>.`).Named("joke instructions")},
)

// JokeGenerator runs the two-step joke workflow: one model call to
// invent topics, then a concurrent fan-out generating jokes per topic.
// A failing topic never takes down its siblings.
type JokeGenerator struct {
	gen  model.Generator
	pipe *pipeline.Pipeline
}

// NewJokeGenerator builds the workflow against the given generator.
func NewJokeGenerator(gen model.Generator) *JokeGenerator {
	pipe := pipeline.New("jokes",
		pipeline.Stage{Name: "compose", Run: func(_ context.Context, pc *pipeline.Context) error {
			topic, err := pc.RequireString(KeyTopic)
			if err != nil {
				return err
			}
			rendered, err := jokeGenerationPrompt.Render(map[string]string{"name": topic})
			if err != nil {
				return err
			}
			pc.Set(KeyPrompt, rendered)
			return nil
		}},
	).Tail("generate", generate(gen))

	return &JokeGenerator{gen: gen, pipe: pipe}
}

// Generate invents n topics and produces a batch of jokes for each.
// Topics whose generation failed are reported alongside the successes.
func (j *JokeGenerator) Generate(ctx context.Context, n int) ([]GeneratedJoke, []error) {
	if n <= 0 {
		n = 3
	}

	topics, err := j.topics(ctx, n)
	if err != nil {
		return nil, []error{err}
	}

	inputs := make([]*pipeline.Context, len(topics))
	for i, topic := range topics {
		pc := pipeline.NewContext()
		pc.Set(KeyTopic, topic)
		inputs[i] = pc
	}

	results := j.pipe.Batch(ctx, inputs, pipeline.DefaultBatchConcurrency)

	var (
		generated []GeneratedJoke
		failures  []error
	)
	for _, res := range results {
		topic := topics[res.Index]
		if res.Err != nil {
			failures = append(failures, fmt.Errorf("topic %q: %w", topic, res.Err))
			continue
		}
		generated = append(generated, parseJokes(topic, res.Context.String(pipeline.OutputKey))...)
	}
	return generated, failures
}

// topics asks the model for n joke topics and parses the XML list.
func (j *JokeGenerator) topics(ctx context.Context, n int) ([]string, error) {
	rendered, err := topicGenerationPrompt.Render(map[string]string{"n": fmt.Sprintf("%d", n)})
	if err != nil {
		return nil, err
	}
	output, err := j.gen.Invoke(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("topic generation: %w", err)
	}

	topics := parseTopics(output)
	if len(topics) == 0 {
		return nil, fmt.Errorf("topic generation: no topics in response")
	}
	return topics, nil
}

var (
	topicPattern  = regexp.MustCompile(`(?s)<name>\s*(.*?)\s*</name>`)
	jokePattern   = regexp.MustCompile(`(?s)<joke>\s*(.*?)\s*</joke>`)
	reasonPattern = regexp.MustCompile(`(?s)<reason>\s*(.*?)\s*</reason>`)
)

// parseTopics extracts topic names from the model's XML reply. Models
// pad tags with whitespace, so every value is trimmed.
func parseTopics(output string) []string {
	matches := topicPattern.FindAllStringSubmatch(output, -1)
	topics := make([]string, 0, len(matches))
	for _, m := range matches {
		if name := strings.TrimSpace(m[1]); name != "" {
			topics = append(topics, name)
		}
	}
	return topics
}

// parseJokes pairs <joke> and <reason> tags positionally. A reply with
// no recognizable tags still yields one joke carrying the raw text, so
// a sloppy model response is degraded rather than dropped.
func parseJokes(topic, output string) []GeneratedJoke {
	jokeMatches := jokePattern.FindAllStringSubmatch(output, -1)
	reasonMatches := reasonPattern.FindAllStringSubmatch(output, -1)

	if len(jokeMatches) == 0 {
		text := strings.TrimSpace(output)
		if text == "" {
			return nil
		}
		return []GeneratedJoke{{Topic: topic, Joke: text}}
	}

	jokes := make([]GeneratedJoke, 0, len(jokeMatches))
	for i, m := range jokeMatches {
		gj := GeneratedJoke{Topic: topic, Joke: strings.TrimSpace(m[1])}
		if i < len(reasonMatches) {
			gj.ChainOfThought = strings.TrimSpace(reasonMatches[i][1])
		}
		jokes = append(jokes, gj)
	}
	return jokes
}
