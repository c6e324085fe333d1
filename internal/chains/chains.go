// Package chains wires prompt templates, branch routing and the model
// adapter into the named pipelines the chat API serves.
//
// Each chain is a pre-built, immutable pipeline graph; per-request
// state (the user message, prior history, classification results)
// travels in the pipeline Context. Chains that need a routing decision
// run a classification stage first and let a Branch pick the arm.
package chains

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jaif/hal/internal/knowledge"
	"github.com/jaif/hal/internal/log"
	"github.com/jaif/hal/internal/model"
	"github.com/jaif/hal/internal/pipeline"
	"github.com/jaif/hal/internal/prompt"
)

// Context keys shared by the chain stages.
const (
	KeyMessage        = "message"
	KeyHistory        = "history"
	KeyClassification = "classification"
	KeyPrompt         = "prompt"
	KeyContext        = "context"
	KeyJokes          = "jokes"
	KeyCandidate      = "candidate"
	KeyTopic          = "name"
)

// Chain route names.
const (
	RouteChat      = "chat"
	RoutePersona   = "persona"
	RouteDynamic   = "dynamic"
	RouteRetrieval = "retrieval"
)

// JokesCollection is where the user's favorite jokes live in the
// vector store.
const JokesCollection = "jokes"

// ErrUnknownChain indicates a routing key with no registered chain.
var ErrUnknownChain = errors.New("unknown chain")

// Retriever is the slice of the knowledge store the chains need.
type Retriever interface {
	Search(ctx context.Context, query, collection string, topK int) ([]knowledge.Result, error)
	Add(ctx context.Context, doc knowledge.Document) error
}

// StoreRetriever adapts a knowledge.Store to the Retriever interface.
type StoreRetriever struct {
	Store *knowledge.Store
}

func (s StoreRetriever) Search(ctx context.Context, query, collection string, topK int) ([]knowledge.Result, error) {
	return s.Store.Search(ctx, query,
		knowledge.WithCollection(collection),
		knowledge.WithTopK(topK),
	)
}

func (s StoreRetriever) Add(ctx context.Context, doc knowledge.Document) error {
	return s.Store.Add(ctx, doc)
}

// Chain is a runnable route: optional preparation stages, then either
// a branch over candidate pipelines or a single pipeline.
type Chain struct {
	name   string
	pre    *pipeline.Pipeline
	branch *pipeline.Branch
	pipe   *pipeline.Pipeline
}

// Name returns the chain's routing key.
func (c *Chain) Name() string { return c.name }

// Stream executes the chain and returns the model's chunk stream. The
// caller owns the stream and must close it.
func (c *Chain) Stream(ctx context.Context, pc *pipeline.Context) (*pipeline.Stream, error) {
	if c.pre != nil {
		if err := c.pre.Run(ctx, pc); err != nil {
			return nil, err
		}
	}
	if c.branch != nil {
		return c.branch.RunStream(ctx, pc)
	}
	return c.pipe.RunStream(ctx, pc)
}

// Run executes the chain to completion and returns the full response.
func (c *Chain) Run(ctx context.Context, pc *pipeline.Context) (string, error) {
	if c.pre != nil {
		if err := c.pre.Run(ctx, pc); err != nil {
			return "", err
		}
	}
	var err error
	if c.branch != nil {
		err = c.branch.Run(ctx, pc)
	} else {
		err = c.pipe.Run(ctx, pc)
	}
	if err != nil {
		return "", err
	}
	return pc.String(pipeline.OutputKey), nil
}

// Registry holds the named chains and answers route lookups.
type Registry struct {
	chains map[string]*Chain
	logger log.Logger
}

// New builds every chain against the given generator and retriever.
func New(gen model.Generator, retriever Retriever, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}

	r := &Registry{chains: map[string]*Chain{}, logger: logger}
	r.register(newChatChain(gen))
	r.register(newPersonaChain(gen))
	r.register(newDynamicChain(gen, retriever))
	r.register(newRetrievalChain(gen, retriever))
	return r
}

func (r *Registry) register(c *Chain) {
	r.chains[c.name] = c
}

// Get returns the chain registered under name.
func (r *Registry) Get(name string) (*Chain, error) {
	c, ok := r.chains[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, name)
	}
	return c, nil
}

// Names returns the registered routing keys.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	return names
}

// Input seeds a fresh pipeline Context for one request.
func Input(message, history string) *pipeline.Context {
	pc := pipeline.NewContext()
	pc.Set(KeyMessage, message)
	pc.Set(KeyHistory, history)
	return pc
}

// newChatChain is the plain conversation route: transcript in, stream
// out, no routing.
func newChatChain(gen model.Generator) *Chain {
	pipe := pipeline.New(RouteChat,
		pipeline.Stage{Name: "compose", Run: func(_ context.Context, pc *pipeline.Context) error {
			message, err := pc.RequireString(KeyMessage)
			if err != nil {
				return err
			}
			pc.Set(KeyPrompt, transcript(chatSystem, pc.String(KeyHistory), message))
			return nil
		}},
	).Tail("generate", generate(gen))

	return &Chain{name: RouteChat, pipe: pipe}
}

// newPersonaChain classifies the message's emotional content, then
// renders either the emotional or the standard persona prompt.
func newPersonaChain(gen model.Generator) *Chain {
	pre := pipeline.New(RoutePersona,
		classifyStage(gen, personaClassification, map[string]string{"currentMessage": KeyMessage},
			func(output string) string {
				if strings.ToUpper(strings.TrimSpace(output)) == "A" {
					return "A"
				}
				return "B"
			}),
	)

	branch := pipeline.NewBranch(personaArm("standard", standardPersona, gen)).
		When(pipeline.ClassifiedAs(KeyClassification, "A"), personaArm("emotional", emotionalPersona, gen))

	return &Chain{name: RoutePersona, pre: pre, branch: branch}
}

func personaArm(name string, system *prompt.Composite, gen model.Generator) *pipeline.Pipeline {
	return pipeline.New(RoutePersona+" "+name,
		pipeline.Stage{Name: "compose", Run: func(_ context.Context, pc *pipeline.Context) error {
			rendered, err := system.Render(nil)
			if err != nil {
				return err
			}
			message, err := pc.RequireString(KeyMessage)
			if err != nil {
				return err
			}
			pc.Set(KeyPrompt, transcript(rendered, pc.String(KeyHistory), message))
			return nil
		}},
	).Tail("generate", generate(gen))
}

// newDynamicChain classifies intent three ways and routes to the
// reasoning, funny or friend character. Unknown classifications fall
// through to the friendly default.
func newDynamicChain(gen model.Generator, retriever Retriever) *Chain {
	pre := pipeline.New(RouteDynamic,
		classifyStage(gen, dynamicClassificationPrompt(), map[string]string{"message": KeyMessage},
			func(output string) string {
				c := strings.ToUpper(strings.TrimSpace(output))
				switch c {
				case "A", "B", "C":
					return c
				}
				return "C"
			}),
	)

	friendly := compositeArm(RouteDynamic+" friend", friendPrompt(), gen)
	branch := pipeline.NewBranch(friendly).
		When(pipeline.ClassifiedAs(KeyClassification, "A"), compositeArm(RouteDynamic+" reasoning", reasoningPrompt(), gen)).
		When(pipeline.ClassifiedAs(KeyClassification, "B"), funnyArm(gen, retriever)).
		When(pipeline.ClassifiedAs(KeyClassification, "C"), friendly)

	return &Chain{name: RouteDynamic, pre: pre, branch: branch}
}

// funnyArm generates a candidate joke, looks up the favorite jokes
// most similar to it and stores the candidate back into the
// collection, then composes the funny prompt around the hits.
func funnyArm(gen model.Generator, retriever Retriever) *pipeline.Pipeline {
	funny := funnyPrompt()

	return pipeline.New(RouteDynamic+" funny",
		pipeline.Stage{Name: "candidate", Run: func(ctx context.Context, pc *pipeline.Context) error {
			message, err := pc.RequireString(KeyMessage)
			if err != nil {
				return err
			}
			rendered, err := standaloneJokePrompt.Render(map[string]string{
				"character":      funnyCharacter,
				"currentMessage": message,
			})
			if err != nil {
				return err
			}
			candidate, err := gen.Invoke(ctx, rendered)
			if err != nil {
				return err
			}
			pc.Set(KeyCandidate, strings.TrimSpace(candidate))
			return nil
		}},
		pipeline.Stage{Name: "retrieve", Run: func(ctx context.Context, pc *pipeline.Context) error {
			candidate, err := pc.RequireString(KeyCandidate)
			if err != nil {
				return err
			}
			results, err := retriever.Search(ctx, candidate, JokesCollection, 5)
			if err != nil {
				return err
			}

			lines := make([]string, 0, len(results))
			for _, r := range results {
				lines = append(lines, r.Document.Content)
			}
			pc.Set(KeyJokes, strings.Join(lines, "\n"))

			// Remember the candidate so future retrievals learn from it.
			err = retriever.Add(ctx, knowledge.Document{
				ID:         "joke-" + uuid.NewString(),
				Collection: JokesCollection,
				Content:    candidate,
			})
			if err != nil {
				return err
			}
			return nil
		}},
		pipeline.Stage{Name: "compose", Run: func(_ context.Context, pc *pipeline.Context) error {
			message, err := pc.RequireString(KeyMessage)
			if err != nil {
				return err
			}
			rendered, err := funny.Render(map[string]string{
				"currentMessage": message,
				"jokes":          pc.String(KeyJokes),
			})
			if err != nil {
				return err
			}
			pc.Set(KeyPrompt, rendered)
			return nil
		}},
	).Tail("generate", generate(gen))
}

// newRetrievalChain answers with the top documents stuffed into the
// prompt as context.
func newRetrievalChain(gen model.Generator, retriever Retriever) *Chain {
	pipe := pipeline.New(RouteRetrieval,
		pipeline.Stage{Name: "retrieve", Run: func(ctx context.Context, pc *pipeline.Context) error {
			message, err := pc.RequireString(KeyMessage)
			if err != nil {
				return err
			}
			results, err := retriever.Search(ctx, message, knowledge.DefaultCollection, knowledge.DefaultTopK)
			if err != nil {
				return err
			}
			docs := make([]string, 0, len(results))
			for _, r := range results {
				docs = append(docs, r.Document.Content)
			}
			pc.Set(KeyContext, strings.Join(docs, "\n\n"))
			return nil
		}},
		pipeline.Stage{Name: "compose", Run: func(_ context.Context, pc *pipeline.Context) error {
			message, err := pc.RequireString(KeyMessage)
			if err != nil {
				return err
			}
			question, err := retrievalHuman.Render(map[string]string{
				"context":  pc.String(KeyContext),
				"question": message,
			})
			if err != nil {
				return err
			}
			body := transcript(retrievalSystem, pc.String(KeyHistory), question)
			pc.Set(KeyPrompt, body+"\nassistant: Let's think step by step.")
			return nil
		}},
	).Tail("generate", generate(gen))

	return &Chain{name: RouteRetrieval, pipe: pipe}
}

// classifyStage renders the classification template, asks the model
// for a label and writes the validated result. keys maps template
// variable names to context keys.
func classifyStage(gen model.Generator, tmpl *prompt.Template, keys map[string]string, validate func(string) string) pipeline.Stage {
	return pipeline.Stage{Name: "classify", Run: func(ctx context.Context, pc *pipeline.Context) error {
		inputs := make(map[string]string, len(keys))
		for variable, key := range keys {
			value, err := pc.RequireString(key)
			if err != nil {
				return err
			}
			inputs[variable] = value
		}

		rendered, err := tmpl.Render(inputs)
		if err != nil {
			return err
		}
		output, err := gen.Invoke(ctx, rendered)
		if err != nil {
			return err
		}
		pc.Set(KeyClassification, validate(output))
		return nil
	}}
}

// compositeArm renders a composite from the context's message and
// streams the model's answer.
func compositeArm(name string, system *prompt.Composite, gen model.Generator) *pipeline.Pipeline {
	return pipeline.New(name,
		pipeline.Stage{Name: "compose", Run: func(_ context.Context, pc *pipeline.Context) error {
			message, err := pc.RequireString(KeyMessage)
			if err != nil {
				return err
			}
			rendered, err := system.Render(map[string]string{"currentMessage": message})
			if err != nil {
				return err
			}
			pc.Set(KeyPrompt, rendered)
			return nil
		}},
	).Tail("generate", generate(gen))
}

// generate is the shared terminal stage: stream the composed prompt.
func generate(gen model.Generator) pipeline.StreamFunc {
	return func(ctx context.Context, pc *pipeline.Context) (*pipeline.Stream, error) {
		rendered, err := pc.RequireString(KeyPrompt)
		if err != nil {
			return nil, err
		}
		return gen.Stream(ctx, rendered)
	}
}

// transcript builds a plain chat transcript: system prompt, prior
// turns, then the current user message awaiting the reply.
func transcript(system, history, message string) string {
	var b strings.Builder
	b.WriteString(system)
	if history != "" {
		b.WriteString("\n\n")
		b.WriteString(history)
	}
	b.WriteString("\nuser: ")
	b.WriteString(message)
	return b.String()
}
