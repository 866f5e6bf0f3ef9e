package retrieval

import "context"

// Chunk is the atomic unit of retrievable transcript content. Chunks are
// produced once by the indexing pipeline and are read-only here.
type Chunk struct {
	Text       string
	WorkshopID string
	// Position is the chunk ordinal within its source transcript.
	Position  int
	Speaker   string
	Timestamp string
	// TokenCount is the estimator-measured length of Text at storage time.
	// Budget accounting trusts this value, so it must come from the same
	// estimator the budgeter uses.
	TokenCount int
	// Similarity is the retrieval score for the current query, higher is
	// more relevant.
	Similarity float64
}

// Retriever is the similarity-search boundary against the external content
// store. Returned chunks are ranked by similarity and annotated with
// TokenCount.
type Retriever interface {
	Search(ctx context.Context, workshopID, query string, limit int) ([]Chunk, error)
}
