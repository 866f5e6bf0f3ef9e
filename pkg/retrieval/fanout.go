package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hugoworkshops/workshopbot/pkg/logger"
)

// ErrAllRetrievalsFailed means every routed workshop's search call failed.
// A single failing workshop is tolerated (it contributes zero chunks); all
// of them failing escalates.
var ErrAllRetrievalsFailed = errors.New("retrieval failed for all routed workshops")

// FanoutResult carries merged chunks plus per-workshop failure bookkeeping.
type FanoutResult struct {
	// Chunks is the merged candidate list: primary order is workshop rank,
	// secondary is retrieval similarity within a workshop.
	Chunks []Chunk
	// FailedWorkshops lists routed workshops whose search call failed.
	FailedWorkshops []string
}

// FetchAll issues one search per routed workshop concurrently and merges the
// results in routing-rank order. Workshops are independent: one failed search
// is logged and treated as zero chunks from that workshop. If the context is
// cancelled the whole call fails; partial results are never returned for an
// aborted request.
func FetchAll(ctx context.Context, retriever Retriever, workshopIDs []string, query string, perWorkshop int) (FanoutResult, error) {
	if len(workshopIDs) == 0 {
		return FanoutResult{}, nil
	}
	if perWorkshop <= 0 {
		perWorkshop = 3
	}

	type slot struct {
		chunks []Chunk
		err    error
	}
	slots := make([]slot, len(workshopIDs))

	var wg sync.WaitGroup
	for i, id := range workshopIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			chunks, err := retriever.Search(ctx, id, query, perWorkshop)
			slots[i] = slot{chunks: chunks, err: err}
		}(i, id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return FanoutResult{}, fmt.Errorf("retrieval aborted: %w", err)
	}

	var result FanoutResult
	failures := 0
	for i, id := range workshopIDs {
		if slots[i].err != nil {
			failures++
			result.FailedWorkshops = append(result.FailedWorkshops, id)
			logger.WarnCF("retrieval", "Workshop search failed", map[string]any{
				"workshop": id,
				"error":    slots[i].err.Error(),
			})
			continue
		}
		chunks := slots[i].chunks
		// Keep within-workshop similarity order stable regardless of what
		// the store returned.
		sort.SliceStable(chunks, func(a, b int) bool {
			return chunks[a].Similarity > chunks[b].Similarity
		})
		if len(chunks) > perWorkshop {
			chunks = chunks[:perWorkshop]
		}
		result.Chunks = append(result.Chunks, chunks...)
	}

	if failures == len(workshopIDs) {
		return result, ErrAllRetrievalsFailed
	}
	return result, nil
}
