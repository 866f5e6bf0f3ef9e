package tokens

import (
	"strings"
	"unicode/utf8"
)

// Estimator approximates token counts. The same estimator instance must be
// used when chunks are stored and when budgets are computed at query time;
// mixing estimators silently breaks budget accounting, so implementations
// carry a stable name that is persisted alongside indexed content and
// verified at query time.
type Estimator interface {
	Name() string
	Count(text string) int
}

// DefaultEstimatorName identifies the built-in heuristic estimator.
const DefaultEstimatorName = "heuristic-chars4-v1"

// heuristicEstimator approximates GPT-style tokenization: roughly one token
// per four characters of English text, never fewer tokens than words. It is
// deliberately conservative so budgets err toward smaller contexts.
type heuristicEstimator struct{}

// NewEstimator returns the default heuristic estimator.
func NewEstimator() Estimator {
	return heuristicEstimator{}
}

func (heuristicEstimator) Name() string { return DefaultEstimatorName }

func (heuristicEstimator) Count(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	chars := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	est := (chars + 3) / 4
	if words > est {
		est = words
	}
	return est
}
