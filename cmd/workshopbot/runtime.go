package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hugoworkshops/workshopbot/pkg/assembler"
	"github.com/hugoworkshops/workshopbot/pkg/config"
	"github.com/hugoworkshops/workshopbot/pkg/course"
	"github.com/hugoworkshops/workshopbot/pkg/llm"
	"github.com/hugoworkshops/workshopbot/pkg/qa"
	"github.com/hugoworkshops/workshopbot/pkg/router"
	"github.com/hugoworkshops/workshopbot/pkg/tokens"
	"github.com/hugoworkshops/workshopbot/pkg/tracklog"
	"github.com/hugoworkshops/workshopbot/pkg/vectorstore"
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.json"
	}
	return filepath.Join(home, ".workshopbot", "config.json")
}

// loadCourse resolves the topic index and catalog, falling back to the
// built-in course definition when no files are configured.
func loadCourse(cfg *config.Config) (*course.Index, *course.Catalog, error) {
	index := course.DefaultIndex()
	catalog := course.DefaultCatalog()

	if cfg.Course.TopicsPath != "" {
		loaded, err := course.LoadIndex(cfg.Course.TopicsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load topics: %w", err)
		}
		index = loaded
	}
	if cfg.Course.MetadataPath != "" {
		loaded, err := course.LoadCatalog(cfg.Course.MetadataPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load course metadata: %w", err)
		}
		catalog = loaded
	}
	return index, catalog, nil
}

// runtimeDeps is everything a command needs beyond the engine itself.
type runtimeDeps struct {
	engine *qa.Engine
	store  *vectorstore.Store
	trail  *tracklog.Store
}

func (d *runtimeDeps) close() {
	if d.store != nil {
		d.store.Close()
	}
	if d.trail != nil {
		_ = d.trail.Close()
	}
}

// buildRuntime wires the full answering stack from config. withTrail controls
// whether interaction logging and the answer cache are enabled.
func buildRuntime(ctx context.Context, cfg *config.Config, withTrail bool) (*runtimeDeps, error) {
	index, catalog, err := loadCourse(cfg)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(cfg.APIBase(), cfg.OpenAI.APIKey, cfg.OpenAI.Proxy)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	estimator := tokens.NewEstimator()
	budgeter, err := tokens.NewBudgeter(estimator, tokens.BudgeterOptions{
		ContentFraction: cfg.Retrieval.ContentFraction,
		SafetyFraction:  cfg.Retrieval.SafetyFraction,
		MinAvailable:    cfg.Retrieval.MinContextTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create budgeter: %w", err)
	}

	embedder := llm.NewEmbeddingService(client, cfg.OpenAI.EmbeddingModel)
	store, err := vectorstore.New(ctx, cfg.Vector.PostgresURL, embedder, cfg.Vector.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("connect vector store: %w", err)
	}

	// Stored token counts must come from the same estimator we budget with.
	storedName, err := store.EstimatorName(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("read estimator name: %w", err)
	}
	if err := budgeter.VerifyEstimator(storedName); err != nil {
		store.Close()
		return nil, err
	}

	var trail *tracklog.Store
	if withTrail {
		trail, err = tracklog.NewStore(cfg.TracklogPath())
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("open tracklog: %w", err)
		}
	}

	classifier := llm.NewWorkshopClassifier(client, cfg.OpenAI.RoutingModel)
	engine, err := qa.NewEngine(qa.Config{
		Catalog:   catalog,
		Router:    router.New(index, classifier),
		Retriever: store,
		Budgeter:  budgeter,
		Assembler: assembler.New(estimator),
		Chat:      client,
		Trail:     trail,
		Defaults: qa.Options{
			Model:             cfg.OpenAI.Model,
			MaxWorkshops:      cfg.Retrieval.MaxWorkshops,
			ChunksPerWorkshop: cfg.Retrieval.ChunksPerWorkshop,
		},
		CacheTTL: time.Duration(cfg.Retrieval.CacheSeconds) * time.Second,
	})
	if err != nil {
		store.Close()
		if trail != nil {
			_ = trail.Close()
		}
		return nil, fmt.Errorf("create engine: %w", err)
	}

	return &runtimeDeps{engine: engine, store: store, trail: trail}, nil
}
