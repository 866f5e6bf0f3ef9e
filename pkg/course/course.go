package course

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Workshop is one topic index entry: a course session with the keyword
// signals used for lexical routing. Entries are immutable after load.
type Workshop struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Keywords []string `json:"keywords"`
}

// Index is the static workshop topic index. It is loaded once at startup
// and passed explicitly to the router; there is no ambient global table.
type Index struct {
	byID map[string]Workshop
	ids  []string
}

// NewIndex builds an index from workshop entries. Duplicate IDs are rejected.
func NewIndex(workshops []Workshop) (*Index, error) {
	byID := make(map[string]Workshop, len(workshops))
	ids := make([]string, 0, len(workshops))
	for _, ws := range workshops {
		if ws.ID == "" {
			return nil, fmt.Errorf("workshop entry with empty id")
		}
		if _, exists := byID[ws.ID]; exists {
			return nil, fmt.Errorf("duplicate workshop id %q", ws.ID)
		}
		byID[ws.ID] = ws
		ids = append(ids, ws.ID)
	}
	sort.Strings(ids)
	return &Index{byID: byID, ids: ids}, nil
}

// LoadIndex reads a topic index from a JSON file ([]Workshop).
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic index: %w", err)
	}
	var workshops []Workshop
	if err := json.Unmarshal(data, &workshops); err != nil {
		return nil, fmt.Errorf("parse topic index: %w", err)
	}
	return NewIndex(workshops)
}

// Get returns the entry for id.
func (idx *Index) Get(id string) (Workshop, bool) {
	ws, ok := idx.byID[id]
	return ws, ok
}

// Has reports whether id is a known workshop.
func (idx *Index) Has(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

// IDs returns all workshop ids in ascending order.
func (idx *Index) IDs() []string {
	out := make([]string, len(idx.ids))
	copy(out, idx.ids)
	return out
}

// Len returns the number of workshops in the index.
func (idx *Index) Len() int {
	return len(idx.ids)
}

// DefaultIndex returns the built-in topic index for the eight-workshop course.
func DefaultIndex() *Index {
	idx, err := NewIndex(defaultWorkshops())
	if err != nil {
		panic(err)
	}
	return idx
}

func defaultWorkshops() []Workshop {
	return []Workshop{
		{
			ID:    "WS1",
			Title: "Generative AI and SDLC for LLMs",
			Keywords: []string{
				"generative ai", "sdlc", "software development lifecycle", "llm applications",
				"non-deterministic systems", "iteration", "tools", "frameworks",
				"foundational app", "querying pdfs", "what is generative ai",
			},
		},
		{
			ID:    "WS2",
			Title: "Prompt Engineering in the LLM SDLC",
			Keywords: []string{
				"prompt engineering", "api knobs", "temperature", "top_p", "max_tokens",
				"system prompt", "prompt refinement", "prompt optimization", "prompting",
			},
		},
		{
			ID:    "WS3",
			Title: "Evaluation and Iteration",
			Keywords: []string{
				"evaluation", "llm outputs", "qualitative", "quantitative", "metrics",
				"relevance", "coherence", "user satisfaction", "feedback loops",
				"thumbs up", "thumbs down", "assessment", "measuring performance",
			},
		},
		{
			ID:    "WS4",
			Title: "Observability and Debugging",
			Keywords: []string{
				"observability", "debugging", "logging", "tracing", "monitoring",
				"performance", "hallucinations", "api failures", "production monitoring",
				"scaling observability", "troubleshooting", "errors",
			},
		},
		{
			ID:    "WS5",
			Title: "Information Retrieval -> Agents",
			Keywords: []string{
				"embeddings", "vector stores", "information retrieval", "rag",
				"retrieval augmented generation", "semantic search", "vectors",
				"similarity search", "knowledge base", "document retrieval",
			},
		},
		{
			ID:    "WS6",
			Title: "Structured Outputs, Function Calling, and Agentic Workflows",
			Keywords: []string{
				"structured outputs", "function calling", "agentic workflows",
				"unstructured data", "linkedin profiles", "json responses",
				"api responses", "automate actions", "send email", "structured data",
			},
		},
		{
			ID:    "WS7",
			Title: "Multi-Agentic Workflows",
			Keywords: []string{
				"multi-agent", "multi-agentic", "advanced prompt optimization",
				"dynamic prompts", "agent collaboration", "apis", "multiple models",
				"future trends", "open-source models", "lightweight deployment",
			},
		},
		{
			ID:    "WS8",
			Title: "Fine-tuning and Production LLM Applications",
			Keywords: []string{
				"fine-tuning", "fine tuning", "datasets", "data collection", "data cleaning",
				"data formatting", "production", "productionizing", "reliability",
				"api scaling", "rate limits", "deployment", "training",
			},
		},
	}
}
