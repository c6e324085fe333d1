package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jaif/hal/internal/model"
	"github.com/jaif/hal/internal/prompt"
	"github.com/jaif/hal/internal/session"
)

var summaryPrompt = prompt.MustNew(
	"Please analyze the following conversation:\n{messages}\n{parseInstructions}").Named("summary")

const summaryInstructions = `Respond with a JSON object, and nothing else, with exactly these fields:
"title": summary of conversation, should be a short sentence.
"topic": topic of conversation, should be one word.
"color": give the conversation a color depending on the contents, should be a hex color code.
"emotion": emotional summary of the conversation, should be a series of 3 emojis.`

// Summarize condenses a conversation into the save object stored on
// the chat: a title, a one-word topic, a mood color and an emoji
// summary.
func Summarize(ctx context.Context, gen model.Generator, messages []session.Message) (session.Summary, error) {
	rendered, err := summaryPrompt.Render(map[string]string{
		"messages":          session.FormatHistory(messages),
		"parseInstructions": summaryInstructions,
	})
	if err != nil {
		return session.Summary{}, err
	}

	output, err := gen.Invoke(ctx, rendered)
	if err != nil {
		return session.Summary{}, fmt.Errorf("summary generation: %w", err)
	}

	summary, err := parseSummary(output)
	if err != nil {
		return session.Summary{}, fmt.Errorf("summary parsing: %w", err)
	}
	return summary, nil
}

// parseSummary unmarshals the model's JSON reply, tolerating markdown
// code fences and surrounding prose.
func parseSummary(output string) (session.Summary, error) {
	text := strings.TrimSpace(output)

	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var summary session.Summary
	if err := json.Unmarshal([]byte(text), &summary); err != nil {
		return session.Summary{}, fmt.Errorf("invalid JSON %q: %w", output, err)
	}
	if summary.Title == "" && summary.Topic == "" {
		return session.Summary{}, fmt.Errorf("response carried no summary fields: %q", output)
	}
	return summary, nil
}
