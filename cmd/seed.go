package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jaif/hal/internal/chains"
	"github.com/jaif/hal/internal/config"
	"github.com/jaif/hal/internal/database"
	"github.com/jaif/hal/internal/genai"
	"github.com/jaif/hal/internal/jokes"
	"github.com/jaif/hal/internal/knowledge"
)

var seedTopics int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate a starter set of jokes and index them for retrieval",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(seedTopics)
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedTopics, "topics", 3, "number of joke topics to generate")
	rootCmd.AddCommand(seedCmd)
}

// runSeed fans out joke generation over fresh topics, persists the
// results and indexes each joke in the vector store so the dynamic
// route has favorites to retrieve against.
func runSeed(topics int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	client, err := genai.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing model client: %w", err)
	}

	jokeStore := jokes.New(pool, logger)
	knowledgeStore := knowledge.New(knowledge.NewQueries(pool), client.Embedder(cfg.EmbedderModel), logger)

	generated, failures := chains.NewJokeGenerator(client).Generate(ctx, topics)
	for _, ferr := range failures {
		logger.Warn("topic generation failed", "error", ferr)
	}
	if len(generated) == 0 {
		return fmt.Errorf("no jokes generated")
	}

	items := make([]jokes.Joke, 0, len(generated))
	for _, g := range generated {
		items = append(items, jokes.Joke{
			Joke:           g.Joke,
			ChainOfThought: g.ChainOfThought,
			Topic:          g.Topic,
		})
	}
	saved, err := jokeStore.SaveAll(ctx, items)
	if err != nil {
		logger.Warn("saving jokes stopped early", "saved", len(saved), "error", err)
	}

	indexed := 0
	for _, j := range saved {
		doc := knowledge.Document{
			ID:         "joke-" + uuid.NewString(),
			Collection: chains.JokesCollection,
			Content:    j.Joke,
			Metadata:   map[string]any{"topic": j.Topic},
		}
		if err := knowledgeStore.Add(ctx, doc); err != nil {
			logger.Warn("indexing joke failed", "topic", j.Topic, "error", err)
			continue
		}
		indexed++
	}

	logger.Info("seed complete", "generated", len(generated), "saved", len(saved), "indexed", indexed)
	return nil
}
