package transcript

import (
	"strings"

	"github.com/hugoworkshops/workshopbot/pkg/retrieval"
	"github.com/hugoworkshops/workshopbot/pkg/tokens"
)

// DefaultTargetTokens is the target chunk size used for indexing.
const DefaultTargetTokens = 500

// Chunker merges transcript cues into retrieval chunks of roughly target
// token size, stamping each chunk with its position, dominant speaker,
// starting timestamp, and the estimator-measured token count that budget
// accounting relies on at query time.
type Chunker struct {
	estimator    tokens.Estimator
	targetTokens int
}

// NewChunker builds a chunker. targetTokens ≤ 0 uses DefaultTargetTokens.
func NewChunker(estimator tokens.Estimator, targetTokens int) *Chunker {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	return &Chunker{estimator: estimator, targetTokens: targetTokens}
}

// Chunk converts cues into chunks for one workshop. A cue that would push
// the running chunk past the target starts a new chunk; single oversized
// cues become their own chunk rather than being split mid-sentence.
func (c *Chunker) Chunk(workshopID string, cues []Cue) []retrieval.Chunk {
	var chunks []retrieval.Chunk

	var sb strings.Builder
	var speaker, timestamp string
	running := 0

	flush := func() {
		text := strings.TrimSpace(sb.String())
		if text == "" {
			return
		}
		chunks = append(chunks, retrieval.Chunk{
			Text:       text,
			WorkshopID: workshopID,
			Position:   len(chunks),
			Speaker:    speaker,
			Timestamp:  timestamp,
			TokenCount: c.estimator.Count(text),
		})
		sb.Reset()
		speaker = ""
		timestamp = ""
		running = 0
	}

	for _, cue := range cues {
		text := strings.TrimSpace(cue.Text)
		if text == "" {
			continue
		}
		cueTokens := c.estimator.Count(text)

		if running > 0 && running+cueTokens > c.targetTokens {
			flush()
		}
		if sb.Len() == 0 {
			speaker = cue.Speaker
			timestamp = cue.Start
		} else {
			sb.WriteString(" ")
		}
		sb.WriteString(text)
		running += cueTokens
	}
	flush()

	return chunks
}
