package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/hugoworkshops/workshopbot/pkg/config"
	"github.com/hugoworkshops/workshopbot/pkg/llm"
	"github.com/hugoworkshops/workshopbot/pkg/meta"
	"github.com/hugoworkshops/workshopbot/pkg/qa"
	"github.com/hugoworkshops/workshopbot/pkg/router"
	"github.com/hugoworkshops/workshopbot/pkg/tokens"
	"github.com/hugoworkshops/workshopbot/pkg/tracklog"
	"github.com/hugoworkshops/workshopbot/pkg/transcript"
)

type askOptions struct {
	model        string
	maxWorkshops int
	chunks       int
	filter       []string
	showDiag     bool
}

func (o askOptions) engineOptions() qa.Options {
	return qa.Options{
		Model:             o.model,
		MaxWorkshops:      o.maxWorkshops,
		ChunksPerWorkshop: o.chunks,
		Filter:            o.filter,
		Channel:           "cli",
	}
}

func askOnce(ctx context.Context, deps *runtimeDeps, question string, opts askOptions) error {
	ans, err := deps.engine.Answer(ctx, question, opts.engineOptions())
	if err != nil {
		fmt.Println(qa.UserMessage(err))
		return err
	}

	fmt.Println(ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, src := range ans.Sources {
			fmt.Printf("  %s §%d (%d tokens): %s\n", src.WorkshopID, src.Position+1, src.TokenCount, src.Preview)
		}
	}
	if opts.showDiag {
		fmt.Println()
		if err := printJSON(ans.Diagnostics); err != nil {
			return err
		}
	}
	return nil
}

func askInteractive(ctx context.Context, deps *runtimeDeps, opts askOptions) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "question> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".workshopbot_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("Ask about the workshops. Type 'exit' or Ctrl+D to quit.")

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		question := strings.TrimSpace(line)
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			fmt.Println("Goodbye!")
			return nil
		}

		if err := askOnce(ctx, deps, question, opts); err != nil {
			continue
		}
		fmt.Println()
	}
}

// routeQuestion shows how a question would be classified and routed without
// hitting the vector store or the answering model.
func routeQuestion(ctx context.Context, cfg *config.Config, question string, maxWorkshops int) error {
	index, _, err := loadCourse(cfg)
	if err != nil {
		return err
	}

	type routeReport struct {
		Question     string                  `json:"question"`
		Category     meta.Category           `json:"category"`
		Workshops    []router.RoutedWorkshop `json:"workshops,omitempty"`
		UsedFallback bool                    `json:"used_fallback,omitempty"`
		Error        string                  `json:"error,omitempty"`
	}

	report := routeReport{
		Question: question,
		Category: meta.NewClassifier().Classify(question),
	}
	if report.Category != meta.CategoryContent {
		return printJSON(report)
	}

	// Fallback classification needs an API key; routing diagnostics work
	// without one for keyword-matched questions.
	var fallback router.Classifier
	if cfg.OpenAI.APIKey != "" {
		client, err := llm.NewClient(cfg.APIBase(), cfg.OpenAI.APIKey, cfg.OpenAI.Proxy)
		if err != nil {
			return err
		}
		fallback = llm.NewWorkshopClassifier(client, cfg.OpenAI.RoutingModel)
	}

	if maxWorkshops <= 0 {
		maxWorkshops = cfg.Retrieval.MaxWorkshops
	}
	result, err := router.New(index, fallback).Route(ctx, question, router.Options{
		MaxWorkshops: maxWorkshops,
	})
	if err != nil {
		report.Error = err.Error()
	} else {
		report.Workshops = result.Workshops
		report.UsedFallback = result.UsedFallback
	}
	return printJSON(report)
}

func indexTranscripts(ctx context.Context, cfg *config.Config, workshopID string, targetTokens int, paths []string) error {
	index, _, err := loadCourse(cfg)
	if err != nil {
		return err
	}
	if !index.Has(workshopID) {
		return fmt.Errorf("unknown workshop id %q (known: %s)", workshopID, strings.Join(index.IDs(), ", "))
	}

	deps, err := buildRuntime(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer deps.close()

	if err := deps.store.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize vector store: %w", err)
	}

	estimator := tokens.NewEstimator()
	chunker := transcript.NewChunker(estimator, targetTokens)

	total := 0
	for _, path := range paths {
		cues, err := transcript.ParseFile(path)
		if err != nil {
			return err
		}
		chunks := chunker.Chunk(workshopID, cues)
		// Positions restart per file; offset them so the workshop keeps a
		// single contiguous sequence.
		for i := range chunks {
			chunks[i].Position += total
		}
		if err := deps.store.AddChunks(ctx, chunks); err != nil {
			return fmt.Errorf("index %s: %w", path, err)
		}
		total += len(chunks)
		fmt.Printf("Indexed %s: %d chunks\n", path, len(chunks))
	}

	if err := deps.store.SetEstimatorName(ctx, estimator.Name()); err != nil {
		return fmt.Errorf("record estimator: %w", err)
	}
	fmt.Printf("Done: %d chunks for %s\n", total, workshopID)
	return nil
}

func showStatus(ctx context.Context, cfg *config.Config) error {
	index, catalog, err := loadCourse(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("workshopbot %s\n\n", formatVersion())
	fmt.Printf("Model:           %s (routing: %s)\n", cfg.OpenAI.Model, cfg.OpenAI.RoutingModel)
	fmt.Printf("Embedding model: %s\n", cfg.OpenAI.EmbeddingModel)
	fmt.Printf("Workshops:       %d (%s)\n", index.Len(), catalog.Course.Title)
	fmt.Printf("API key set:     %t\n", cfg.OpenAI.APIKey != "")
	fmt.Printf("Discord token:   %t\n", cfg.Discord.Token != "")

	deps, err := buildRuntime(ctx, cfg, false)
	if err != nil {
		fmt.Printf("Vector store:    unavailable (%v)\n", err)
		return nil
	}
	defer deps.close()

	counts, err := deps.store.CountChunks(ctx)
	if err != nil {
		fmt.Printf("Vector store:    connected, counts unavailable (%v)\n", err)
		return nil
	}
	fmt.Println("Vector store:    connected")
	for _, id := range index.IDs() {
		fmt.Printf("  %-4s %d chunks\n", id, counts[id])
	}

	trail, err := tracklog.NewStore(cfg.TracklogPath())
	if err != nil {
		return nil
	}
	defer trail.Close()
	if up, down, total, err := trail.FeedbackSummary(ctx, 500); err == nil && total > 0 {
		fmt.Printf("Feedback:        %d up / %d down over last %d answers\n", up, down, total)
	}
	return nil
}
