package tokens

import (
	"errors"
	"strings"
	"testing"
)

func TestEstimator_CountHeuristics(t *testing.T) {
	est := NewEstimator()

	if got := est.Count(""); got != 0 {
		t.Fatalf("empty text = %d tokens, want 0", got)
	}
	if got := est.Count("   "); got != 0 {
		t.Fatalf("whitespace = %d tokens, want 0", got)
	}
	// 8 chars -> 2 tokens by the chars/4 rule.
	if got := est.Count("abcdefgh"); got != 2 {
		t.Fatalf("8 chars = %d tokens, want 2", got)
	}
	// Many short words: word count dominates chars/4.
	if got := est.Count("a b c d e f"); got != 6 {
		t.Fatalf("6 short words = %d tokens, want 6", got)
	}
}

func TestEstimator_Name(t *testing.T) {
	if NewEstimator().Name() != DefaultEstimatorName {
		t.Fatalf("estimator name = %q, want %q", NewEstimator().Name(), DefaultEstimatorName)
	}
}

func TestModelWindow_UnknownModelFailsClosed(t *testing.T) {
	_, err := ModelWindow("gpt-99-ultra")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}

	b, err := NewBudgeter(NewEstimator(), BudgeterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.Compute("gpt-99-ultra", "sys", "question")
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("Compute with unknown model: expected ErrUnknownModel, got %v", err)
	}
}

func TestNewBudgeter_RejectsOvercommittedFractions(t *testing.T) {
	_, err := NewBudgeter(NewEstimator(), BudgeterOptions{ContentFraction: 0.8, SafetyFraction: 0.3})
	if !errors.Is(err, ErrBadFractions) {
		t.Fatalf("expected ErrBadFractions, got %v", err)
	}
}

func TestCompute_BudgetArithmetic(t *testing.T) {
	est := NewEstimator()
	b, err := NewBudgeter(est, BudgeterOptions{ContentFraction: 0.65, SafetyFraction: 0.10, MinAvailable: 256})
	if err != nil {
		t.Fatal(err)
	}

	sys := "You are a helpful workshop assistant."
	q := "what is prompt engineering?"
	budget, err := b.Compute("gpt-4o-mini", sys, q)
	if err != nil {
		t.Fatal(err)
	}

	if budget.WindowTokens != 8192 {
		t.Fatalf("window = %d, want 8192", budget.WindowTokens)
	}
	window := float64(8192)
	wantMax := int(window * 0.65)
	if budget.MaxContextTokens != wantMax {
		t.Fatalf("max context = %d, want %d", budget.MaxContextTokens, wantMax)
	}
	wantReserved := est.Count(sys) + est.Count(q) + int(window*0.10)
	if budget.ReservedTokens != wantReserved {
		t.Fatalf("reserved = %d, want %d", budget.ReservedTokens, wantReserved)
	}
	if budget.AvailableTokens != budget.MaxContextTokens-budget.ReservedTokens {
		t.Fatalf("available = %d, want max-reserved = %d",
			budget.AvailableTokens, budget.MaxContextTokens-budget.ReservedTokens)
	}
}

func TestCompute_FloorViolation(t *testing.T) {
	b, err := NewBudgeter(NewEstimator(), BudgeterOptions{MinAvailable: 256})
	if err != nil {
		t.Fatal(err)
	}

	// A huge system prompt on the smallest window leaves nothing for content.
	hugePrompt := strings.Repeat("context preamble text ", 800)
	budget, err := b.Compute("gpt-3.5-turbo", hugePrompt, "short question")
	if !errors.Is(err, ErrBudgetTooSmall) {
		t.Fatalf("expected ErrBudgetTooSmall, got %v", err)
	}
	if budget.AvailableTokens < 0 {
		t.Fatalf("available tokens must clamp at 0, got %d", budget.AvailableTokens)
	}
}

func TestVerifyEstimator(t *testing.T) {
	b, err := NewBudgeter(NewEstimator(), BudgeterOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.VerifyEstimator(""); err != nil {
		t.Fatalf("empty stored name (unindexed store) should pass, got %v", err)
	}
	if err := b.VerifyEstimator(DefaultEstimatorName); err != nil {
		t.Fatalf("matching name should pass, got %v", err)
	}
	if err := b.VerifyEstimator("tiktoken-cl100k"); !errors.Is(err, ErrEstimatorMismatch) {
		t.Fatalf("expected ErrEstimatorMismatch, got %v", err)
	}
}
