package tokens

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownModel means the model has no context-window table entry.
	// Budgeting fails closed rather than guessing a window size.
	ErrUnknownModel = errors.New("unknown model: no context window entry")

	// ErrBadFractions means content + safety fractions exceed the window.
	ErrBadFractions = errors.New("content and safety fractions must sum to at most 1")

	// ErrBudgetTooSmall means reserved tokens leave less than the configured
	// floor for retrieved content.
	ErrBudgetTooSmall = errors.New("available token budget below minimum floor")

	// ErrEstimatorMismatch means stored token counts were produced by a
	// different estimator than the one budgeting with now.
	ErrEstimatorMismatch = errors.New("token estimator mismatch between store and budgeter")
)

// modelWindows maps known model names to context window sizes in tokens.
var modelWindows = map[string]int{
	"gpt-4o-mini":       8192,
	"gpt-4o":            128000,
	"gpt-3.5-turbo":     4096,
	"gpt-3.5-turbo-16k": 16384,
}

// ModelWindow returns the context window for a known model.
func ModelWindow(model string) (int, error) {
	window, ok := modelWindows[model]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	return window, nil
}

// KnownModel reports whether the model has a window table entry.
func KnownModel(model string) bool {
	_, ok := modelWindows[model]
	return ok
}

// ContextBudget is the per-question token allocation.
type ContextBudget struct {
	Model            string
	WindowTokens     int
	MaxContextTokens int // content fraction of the window
	ReservedTokens   int // system prompt + question + safety margin
	AvailableTokens  int // MaxContextTokens - ReservedTokens
}

// Budgeter computes per-question context budgets from a fixed model window
// table and configured allocation fractions.
type Budgeter struct {
	estimator       Estimator
	contentFraction float64
	safetyFraction  float64
	minAvailable    int
}

// BudgeterOptions configures allocation policy. Fractions are of the model
// window; they must sum to at most 1.
type BudgeterOptions struct {
	ContentFraction float64
	SafetyFraction  float64
	MinAvailable    int
}

// NewBudgeter builds a budgeter. Zero-valued options take defaults
// (content 0.65, safety 0.10, floor 256).
func NewBudgeter(estimator Estimator, opts BudgeterOptions) (*Budgeter, error) {
	if estimator == nil {
		return nil, fmt.Errorf("estimator is required")
	}
	if opts.ContentFraction <= 0 {
		opts.ContentFraction = 0.65
	}
	if opts.SafetyFraction <= 0 {
		opts.SafetyFraction = 0.10
	}
	if opts.MinAvailable <= 0 {
		opts.MinAvailable = 256
	}
	if opts.ContentFraction+opts.SafetyFraction > 1.0 {
		return nil, fmt.Errorf("%w: content=%.2f safety=%.2f",
			ErrBadFractions, opts.ContentFraction, opts.SafetyFraction)
	}
	return &Budgeter{
		estimator:       estimator,
		contentFraction: opts.ContentFraction,
		safetyFraction:  opts.SafetyFraction,
		minAvailable:    opts.MinAvailable,
	}, nil
}

// Estimator returns the estimator budgets are computed with.
func (b *Budgeter) Estimator() Estimator {
	return b.estimator
}

// VerifyEstimator checks that stored content was counted with the same
// estimator this budgeter uses.
func (b *Budgeter) VerifyEstimator(storedName string) error {
	if storedName != "" && storedName != b.estimator.Name() {
		return fmt.Errorf("%w: store=%q budgeter=%q",
			ErrEstimatorMismatch, storedName, b.estimator.Name())
	}
	return nil
}

// Compute derives the context budget for one question against one model.
// The system prompt and question are charged against the reserved portion;
// what remains of the content allocation is available for retrieved chunks.
func (b *Budgeter) Compute(model, systemPrompt, question string) (ContextBudget, error) {
	window, err := ModelWindow(model)
	if err != nil {
		return ContextBudget{}, err
	}

	maxContext := int(float64(window) * b.contentFraction)
	safety := int(float64(window) * b.safetyFraction)
	reserved := b.estimator.Count(systemPrompt) + b.estimator.Count(question) + safety

	available := maxContext - reserved
	if available < 0 {
		available = 0
	}
	budget := ContextBudget{
		Model:            model,
		WindowTokens:     window,
		MaxContextTokens: maxContext,
		ReservedTokens:   reserved,
		AvailableTokens:  available,
	}
	if available < b.minAvailable {
		return budget, fmt.Errorf("%w: available=%d floor=%d model=%s",
			ErrBudgetTooSmall, available, b.minAvailable, model)
	}
	return budget, nil
}
