package assembler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hugoworkshops/workshopbot/pkg/logger"
	"github.com/hugoworkshops/workshopbot/pkg/retrieval"
	"github.com/hugoworkshops/workshopbot/pkg/tokens"
)

// ErrNothingFits means candidates were available but not even the single
// smallest chunk fit the budget. Distinct from an empty candidate list so
// the caller can message the user accurately.
var ErrNothingFits = errors.New("no retrieved chunk fits the token budget")

// Provenance records where one included chunk came from.
type Provenance struct {
	WorkshopID string
	Position   int
	Speaker    string
	Timestamp  string
	TokenCount int
	Similarity float64
	Preview    string
}

// Context is the assembled, budget-bounded prompt context.
type Context struct {
	Text            string
	Included        []Provenance
	TokensUsed      int
	TokensRemaining int
}

// Options controls assembly.
type Options struct {
	// ChunksPerWorkshop caps how many chunks any single workshop may
	// contribute, so routed workshops share the context. Defaults to 3.
	ChunksPerWorkshop int
	// AllowPartial permits truncating the final chunk to fill remaining
	// budget. Off by default: chunk boundaries are kept intact.
	AllowPartial bool
}

// Assembler packs ranked chunks into a bounded context string.
type Assembler struct {
	estimator tokens.Estimator
}

// New builds an assembler. The estimator must be the same one chunk token
// counts were produced with; it is used here only for separator accounting
// and partial truncation.
func New(estimator tokens.Estimator) *Assembler {
	return &Assembler{estimator: estimator}
}

const previewRunes = 200

// Assemble greedily includes ranked chunks while the running token total
// stays within budget. A chunk that would overflow is skipped, not
// truncated, and iteration continues: a later, smaller chunk may still fit.
// Greedy is deliberate; optimal packing is not a goal.
//
// Returns an empty Context (no error) for an empty candidate list, and
// ErrNothingFits when candidates existed but none fit.
func (a *Assembler) Assemble(ranked []retrieval.Chunk, budget tokens.ContextBudget, opts Options) (Context, error) {
	if opts.ChunksPerWorkshop <= 0 {
		opts.ChunksPerWorkshop = 3
	}

	result := Context{TokensRemaining: budget.AvailableTokens}
	if len(ranked) == 0 {
		return result, nil
	}

	var sb strings.Builder
	perWorkshop := make(map[string]int)
	total := 0

	for _, chunk := range ranked {
		if perWorkshop[chunk.WorkshopID] >= opts.ChunksPerWorkshop {
			continue
		}

		separator := a.separator(chunk.WorkshopID, len(result.Included) == 0)
		cost := chunk.TokenCount + a.estimator.Count(separator)

		if total+cost > budget.AvailableTokens {
			if opts.AllowPartial {
				if part, used, ok := a.partialFit(chunk, separator, budget.AvailableTokens-total); ok {
					sb.WriteString(separator)
					sb.WriteString(part)
					result.Included = append(result.Included, provenanceFor(chunk, used))
					perWorkshop[chunk.WorkshopID]++
					total += used + a.estimator.Count(separator)
					break
				}
			}
			// Skip, do not stop: a smaller chunk may still fit.
			continue
		}

		sb.WriteString(separator)
		sb.WriteString(chunk.Text)
		result.Included = append(result.Included, provenanceFor(chunk, chunk.TokenCount))
		perWorkshop[chunk.WorkshopID]++
		total += cost
	}

	if len(result.Included) == 0 {
		return result, ErrNothingFits
	}

	result.Text = sb.String()
	result.TokensUsed = total
	result.TokensRemaining = budget.AvailableTokens - total

	logger.DebugCF("assembler", "Context assembled", map[string]any{
		"chunks":           len(result.Included),
		"tokens_used":      result.TokensUsed,
		"tokens_remaining": result.TokensRemaining,
	})
	return result, nil
}

func (a *Assembler) separator(workshopID string, first bool) string {
	if first {
		return fmt.Sprintf("=== %s Content ===\n", workshopID)
	}
	return fmt.Sprintf("\n\n--- %s ---\n", workshopID)
}

// partialFit trims chunk text to approximately the remaining token budget.
// Returns ok=false when the remainder is too small to be worth including.
func (a *Assembler) partialFit(chunk retrieval.Chunk, separator string, remaining int) (string, int, bool) {
	remaining -= a.estimator.Count(separator)
	if remaining < 32 {
		return "", 0, false
	}
	runes := []rune(chunk.Text)
	// Four characters per token mirrors the heuristic estimator, but the
	// estimator also counts words, so the character check alone is not
	// enough: short-word text can pass it while still overflowing.
	limit := remaining * 4
	if limit >= len(runes) {
		if chunk.TokenCount <= remaining {
			return chunk.Text, chunk.TokenCount, true
		}
		limit = len(runes)
	}
	text := strings.TrimSpace(string(runes[:limit]))
	for text != "" && a.estimator.Count(text) > remaining {
		r := []rune(text)
		text = strings.TrimSpace(string(r[:len(r)*9/10]))
	}
	if text == "" {
		return "", 0, false
	}
	return text, a.estimator.Count(text), true
}

func provenanceFor(chunk retrieval.Chunk, usedTokens int) Provenance {
	preview := chunk.Text
	if r := []rune(preview); len(r) > previewRunes {
		preview = string(r[:previewRunes]) + "..."
	}
	return Provenance{
		WorkshopID: chunk.WorkshopID,
		Position:   chunk.Position,
		Speaker:    chunk.Speaker,
		Timestamp:  chunk.Timestamp,
		TokenCount: usedTokens,
		Similarity: chunk.Similarity,
		Preview:    preview,
	}
}
