package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hugoworkshops/workshopbot/pkg/course"
	"github.com/hugoworkshops/workshopbot/pkg/logger"
)

var (
	// ErrEmptyQuestion means the question was empty after trimming.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrNoRelevantWorkshop means neither keyword scoring nor the fallback
	// classifier produced a workshop for the question.
	ErrNoRelevantWorkshop = errors.New("no relevant workshop found")
)

// Classifier picks up to max workshop labels for a question when lexical
// scoring finds nothing. Implementations may call an LLM; the keyword path
// never does.
type Classifier interface {
	ClassifyWorkshops(ctx context.Context, question string, workshops []course.Workshop, max int) ([]string, error)
}

// RoutedWorkshop is one routing decision with its lexical score.
// Fallback-selected workshops carry a zero score.
type RoutedWorkshop struct {
	ID    string
	Score float64
}

// Result is the ordered routing shortlist for one question.
type Result struct {
	Workshops    []RoutedWorkshop
	UsedFallback bool
}

// IDs returns the routed workshop ids in rank order.
func (r Result) IDs() []string {
	out := make([]string, len(r.Workshops))
	for i, ws := range r.Workshops {
		out[i] = ws.ID
	}
	return out
}

// Options controls one routing call.
type Options struct {
	// MaxWorkshops bounds the shortlist length. Defaults to 2.
	MaxWorkshops int
	// Filter restricts candidates to these ids and bypasses zero-score
	// exclusion: an explicit filter wins over scoring.
	Filter []string
}

// Router scores workshops against questions by keyword overlap, with an
// optional injected fallback classifier for questions that match nothing.
type Router struct {
	index    *course.Index
	fallback Classifier
}

// New builds a router over a topic index. fallback may be nil, in which
// case zero-match questions fail with ErrNoRelevantWorkshop.
func New(index *course.Index, fallback Classifier) *Router {
	return &Router{index: index, fallback: fallback}
}

// Route returns the ranked workshop shortlist for a question.
//
// Scoring is lexical: a keyword phrase found in the lowercased question
// scores 2.0; for multi-word keywords, each individual word longer than
// three characters found in the question adds 0.5. Ties break on workshop
// id ascending so routing is reproducible. The fallback classifier is the
// only non-deterministic path and is flagged in the result.
func (r *Router) Route(ctx context.Context, question string, opts Options) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, ErrEmptyQuestion
	}
	if opts.MaxWorkshops <= 0 {
		opts.MaxWorkshops = 2
	}

	candidates, filtered, err := r.candidates(opts.Filter)
	if err != nil {
		return Result{}, err
	}

	scored := scoreWorkshops(question, candidates)

	// An explicit filter overrides scoring: every filtered workshop stays a
	// candidate even with zero keyword overlap.
	if !filtered {
		kept := scored[:0]
		for _, sw := range scored {
			if sw.Score > 0 {
				kept = append(kept, sw)
			}
		}
		scored = kept
	}

	if len(scored) == 0 {
		return r.routeFallback(ctx, question, candidates, opts.MaxWorkshops)
	}

	if len(scored) > opts.MaxWorkshops {
		scored = scored[:opts.MaxWorkshops]
	}
	logger.DebugCF("router", "Routed question by keywords", map[string]any{
		"workshops": Result{Workshops: scored}.IDs(),
		"top_score": scored[0].Score,
	})
	return Result{Workshops: scored}, nil
}

func (r *Router) candidates(filter []string) ([]course.Workshop, bool, error) {
	if len(filter) == 0 {
		all := make([]course.Workshop, 0, r.index.Len())
		for _, id := range r.index.IDs() {
			ws, _ := r.index.Get(id)
			all = append(all, ws)
		}
		return all, false, nil
	}

	out := make([]course.Workshop, 0, len(filter))
	seen := make(map[string]struct{}, len(filter))
	for _, id := range filter {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ws, ok := r.index.Get(id)
		if !ok {
			return nil, true, fmt.Errorf("workshop filter references unknown id %q", id)
		}
		out = append(out, ws)
	}
	return out, true, nil
}

func scoreWorkshops(question string, candidates []course.Workshop) []RoutedWorkshop {
	qLower := strings.ToLower(question)

	scored := make([]RoutedWorkshop, 0, len(candidates))
	for _, ws := range candidates {
		score := 0.0
		for _, keyword := range ws.Keywords {
			if strings.Contains(qLower, keyword) {
				score += 2.0
				continue
			}
			words := strings.Fields(keyword)
			if len(words) < 2 {
				continue
			}
			for _, word := range words {
				if len(word) > 3 && strings.Contains(qLower, word) {
					score += 0.5
				}
			}
		}
		scored = append(scored, RoutedWorkshop{ID: ws.ID, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score == scored[j].Score {
			return scored[i].ID < scored[j].ID
		}
		return scored[i].Score > scored[j].Score
	})
	return scored
}

func (r *Router) routeFallback(ctx context.Context, question string, candidates []course.Workshop, max int) (Result, error) {
	if r.fallback == nil {
		return Result{}, ErrNoRelevantWorkshop
	}

	ids, err := r.fallback.ClassifyWorkshops(ctx, question, candidates, max)
	if err != nil {
		logger.WarnCF("router", "Fallback classification failed", map[string]any{
			"error": err.Error(),
		})
		return Result{}, fmt.Errorf("%w: fallback classification failed: %v", ErrNoRelevantWorkshop, err)
	}

	valid := make([]RoutedWorkshop, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if !r.index.Has(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		valid = append(valid, RoutedWorkshop{ID: id})
		if len(valid) >= max {
			break
		}
	}
	if len(valid) == 0 {
		return Result{}, ErrNoRelevantWorkshop
	}
	logger.InfoCF("router", "Routed question via fallback classifier", map[string]any{
		"workshops": Result{Workshops: valid}.IDs(),
	})
	return Result{Workshops: valid, UsedFallback: true}, nil
}
