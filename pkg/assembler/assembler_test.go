package assembler

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/hugoworkshops/workshopbot/pkg/retrieval"
	"github.com/hugoworkshops/workshopbot/pkg/tokens"
)

func testBudget(available int) tokens.ContextBudget {
	return tokens.ContextBudget{
		Model:            "gpt-4o-mini",
		WindowTokens:     8192,
		MaxContextTokens: 5324,
		ReservedTokens:   5324 - available,
		AvailableTokens:  available,
	}
}

// chunkOf builds a chunk whose estimator token count is close to tokens.
func chunkOf(workshopID string, position, tokenTarget int, similarity float64) retrieval.Chunk {
	text := strings.TrimSpace(strings.Repeat("workshop transcript text ", tokenTarget/6+1))
	est := tokens.NewEstimator()
	return retrieval.Chunk{
		Text:       text,
		WorkshopID: workshopID,
		Position:   position,
		TokenCount: est.Count(text),
		Similarity: similarity,
	}
}

func TestAssemble_EmptyInput(t *testing.T) {
	a := New(tokens.NewEstimator())

	result, err := a.Assemble(nil, testBudget(1000), Options{})
	if err != nil {
		t.Fatalf("empty candidate list must not error, got %v", err)
	}
	if result.Text != "" || len(result.Included) != 0 {
		t.Fatalf("expected empty context, got %+v", result)
	}
}

func TestAssemble_StaysWithinBudget(t *testing.T) {
	a := New(tokens.NewEstimator())

	chunks := []retrieval.Chunk{
		chunkOf("WS2", 0, 400, 0.9),
		chunkOf("WS2", 1, 400, 0.8),
		chunkOf("WS3", 0, 400, 0.7),
		chunkOf("WS3", 1, 400, 0.6),
	}
	budget := testBudget(900)

	result, err := a.Assemble(chunks, budget, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if result.TokensUsed > budget.AvailableTokens {
		t.Fatalf("tokens used %d exceeds budget %d", result.TokensUsed, budget.AvailableTokens)
	}
	if result.TokensRemaining != budget.AvailableTokens-result.TokensUsed {
		t.Fatalf("remaining %d inconsistent with used %d of %d",
			result.TokensRemaining, result.TokensUsed, budget.AvailableTokens)
	}
	if len(result.Included) == 0 {
		t.Fatal("expected at least one chunk included")
	}
}

func TestAssemble_PerWorkshopCap(t *testing.T) {
	a := New(tokens.NewEstimator())

	chunks := []retrieval.Chunk{
		chunkOf("WS2", 0, 50, 0.9),
		chunkOf("WS2", 1, 50, 0.8),
		chunkOf("WS2", 2, 50, 0.7),
		chunkOf("WS2", 3, 50, 0.6),
		chunkOf("WS3", 0, 50, 0.5),
	}

	result, err := a.Assemble(chunks, testBudget(5000), Options{ChunksPerWorkshop: 2})
	if err != nil {
		t.Fatal(err)
	}

	perWorkshop := make(map[string]int)
	for _, src := range result.Included {
		perWorkshop[src.WorkshopID]++
	}
	if perWorkshop["WS2"] != 2 {
		t.Fatalf("WS2 contributed %d chunks, cap is 2", perWorkshop["WS2"])
	}
	if perWorkshop["WS3"] != 1 {
		t.Fatalf("WS3 contributed %d chunks, want 1", perWorkshop["WS3"])
	}
}

// TestAssemble_SkipsOversizedAndContinues verifies greedy assembly skips a
// chunk that would overflow and still considers later, smaller chunks.
func TestAssemble_SkipsOversizedAndContinues(t *testing.T) {
	a := New(tokens.NewEstimator())

	chunks := []retrieval.Chunk{
		chunkOf("WS2", 0, 300, 0.9),
		chunkOf("WS2", 1, 5000, 0.8), // does not fit
		chunkOf("WS3", 0, 200, 0.7),  // must still be included
	}

	result, err := a.Assemble(chunks, testBudget(800), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Included) != 2 {
		t.Fatalf("included %d chunks, want 2 (oversized skipped, later chunk kept)", len(result.Included))
	}
	for _, src := range result.Included {
		if src.WorkshopID == "WS2" && src.Position == 1 {
			t.Fatal("oversized chunk was included")
		}
	}
}

// TestAssemble_TopChunkTooLarge covers the underflow case: content exists but
// even the best chunk exceeds the whole budget.
func TestAssemble_TopChunkTooLarge(t *testing.T) {
	a := New(tokens.NewEstimator())

	// A single ~9000-token chunk against a budget derived from an 8192 window.
	chunks := []retrieval.Chunk{chunkOf("WS5", 0, 9000, 0.95)}

	_, err := a.Assemble(chunks, testBudget(4000), Options{})
	if !errors.Is(err, ErrNothingFits) {
		t.Fatalf("expected ErrNothingFits, got %v", err)
	}
}

func TestAssemble_AllowPartialTruncates(t *testing.T) {
	a := New(tokens.NewEstimator())

	chunks := []retrieval.Chunk{chunkOf("WS5", 0, 2000, 0.95)}
	budget := testBudget(500)

	result, err := a.Assemble(chunks, budget, Options{AllowPartial: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Included) != 1 {
		t.Fatalf("included %d chunks, want 1 partial", len(result.Included))
	}
	if result.TokensUsed > budget.AvailableTokens {
		t.Fatalf("partial fit used %d tokens, budget %d", result.TokensUsed, budget.AvailableTokens)
	}
}

// TestAssemble_AllowPartialShortWordText pins the budget invariant for text
// whose token count is dominated by the word count rather than the character
// count. Such a chunk passes a characters-per-token length check while its
// measured token count still exceeds the remaining budget, so the partial
// path must trim it instead of including it whole.
func TestAssemble_AllowPartialShortWordText(t *testing.T) {
	est := tokens.NewEstimator()
	a := New(est)

	// 200 one-character words: ~399 runes but 200 tokens.
	text := strings.TrimSpace(strings.Repeat("a ", 200))
	chunks := []retrieval.Chunk{{
		Text:       text,
		WorkshopID: "WS2",
		TokenCount: est.Count(text),
		Similarity: 0.9,
	}}
	budget := testBudget(180)

	result, err := a.Assemble(chunks, budget, Options{AllowPartial: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.TokensUsed > budget.AvailableTokens {
		t.Fatalf("tokens used %d exceeds budget %d", result.TokensUsed, budget.AvailableTokens)
	}
	if len(result.Included) != 1 {
		t.Fatalf("included %d chunks, want 1 partial", len(result.Included))
	}
	if result.Included[0].TokenCount >= chunks[0].TokenCount {
		t.Fatalf("chunk was not trimmed: included %d tokens of %d",
			result.Included[0].TokenCount, chunks[0].TokenCount)
	}
}

// TestAssemble_GreedyInclusionMonotonic checks that relaxing the budget never
// loses chunks: an effectively unlimited budget must include at least as many
// chunks as any finite budget over the same ranked input.
func TestAssemble_GreedyInclusionMonotonic(t *testing.T) {
	a := New(tokens.NewEstimator())

	chunks := []retrieval.Chunk{
		chunkOf("WS2", 0, 300, 0.9),
		chunkOf("WS2", 1, 700, 0.8),
		chunkOf("WS3", 0, 150, 0.7),
		chunkOf("WS3", 1, 500, 0.6),
	}

	finite, err := a.Assemble(chunks, testBudget(600), Options{})
	if err != nil {
		t.Fatal(err)
	}
	infinite, err := a.Assemble(chunks, tokens.ContextBudget{AvailableTokens: math.MaxInt / 2}, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if len(finite.Included) > len(infinite.Included) {
		t.Fatalf("finite budget included %d chunks, unlimited budget only %d",
			len(finite.Included), len(infinite.Included))
	}
	if len(infinite.Included) != len(chunks) {
		t.Fatalf("unlimited budget included %d of %d chunks", len(infinite.Included), len(chunks))
	}
}

func TestAssemble_SeparatorsNameWorkshops(t *testing.T) {
	a := New(tokens.NewEstimator())

	chunks := []retrieval.Chunk{
		chunkOf("WS2", 0, 100, 0.9),
		chunkOf("WS3", 0, 100, 0.8),
	}
	result, err := a.Assemble(chunks, testBudget(2000), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(result.Text, "=== WS2 Content ===") {
		t.Fatalf("context must open with the first workshop header:\n%s", result.Text[:40])
	}
	if !strings.Contains(result.Text, "--- WS3 ---") {
		t.Fatal("context missing the follow-on workshop separator")
	}
}
