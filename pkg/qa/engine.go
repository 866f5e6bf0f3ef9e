package qa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hugoworkshops/workshopbot/pkg/assembler"
	"github.com/hugoworkshops/workshopbot/pkg/course"
	"github.com/hugoworkshops/workshopbot/pkg/llm"
	"github.com/hugoworkshops/workshopbot/pkg/logger"
	"github.com/hugoworkshops/workshopbot/pkg/meta"
	"github.com/hugoworkshops/workshopbot/pkg/retrieval"
	"github.com/hugoworkshops/workshopbot/pkg/router"
	"github.com/hugoworkshops/workshopbot/pkg/tokens"
	"github.com/hugoworkshops/workshopbot/pkg/tracklog"
)

// ErrNoChunks means retrieval succeeded but returned nothing relevant.
// Distinct from assembler.ErrNothingFits, where content existed but could
// not fit the budget.
var ErrNoChunks = errors.New("no relevant chunks retrieved")

// ChatClient is the answering-model boundary, satisfied by *llm.Client.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []llm.Message, opts llm.ChatOptions) (*llm.ChatResponse, error)
}

// Options tunes one answer request. Zero values take engine defaults.
type Options struct {
	Model             string
	MaxWorkshops      int
	ChunksPerWorkshop int
	// Filter restricts routing to these workshop ids, bypassing scoring.
	Filter  []string
	Channel string
	UserID  string
}

// Diagnostics is a first-class output of every answer: it is what lets an
// operator verify routing and budget behavior after the fact.
type Diagnostics struct {
	Category        meta.Category `json:"category"`
	MetaPath        bool          `json:"meta_path"`
	Workshops       []string      `json:"workshops,omitempty"`
	UsedFallback    bool          `json:"used_fallback"`
	FailedWorkshops []string      `json:"failed_workshops,omitempty"`
	ChunksUsed      int           `json:"chunks_used"`
	TokensUsed      int           `json:"tokens_used"`
	TokensAvailable int           `json:"tokens_available"`
	Model           string        `json:"model,omitempty"`
	CacheHit        bool          `json:"cache_hit"`
}

// Answer is a completed response with provenance and diagnostics.
type Answer struct {
	Text          string                 `json:"text"`
	Sources       []assembler.Provenance `json:"sources,omitempty"`
	Diagnostics   Diagnostics            `json:"diagnostics"`
	InteractionID string                 `json:"interaction_id,omitempty"`
}

// Engine answers workshop questions: meta-questions from the static catalog,
// content questions via routing, budget-bounded retrieval, and one LLM call.
type Engine struct {
	classifier *meta.Classifier
	answerer   *meta.Answerer
	router     *router.Router
	retriever  retrieval.Retriever
	budgeter   *tokens.Budgeter
	assembler  *assembler.Assembler
	chat       ChatClient
	trail      *tracklog.Store
	defaults   Options
	cacheTTL   time.Duration
}

// Config wires an engine. Trail may be nil (no logging, no cache).
type Config struct {
	Catalog   *course.Catalog
	Router    *router.Router
	Retriever retrieval.Retriever
	Budgeter  *tokens.Budgeter
	Assembler *assembler.Assembler
	Chat      ChatClient
	Trail     *tracklog.Store
	Defaults  Options
	CacheTTL  time.Duration
}

// NewEngine validates wiring and builds the engine.
func NewEngine(cfg Config) (*Engine, error) {
	switch {
	case cfg.Catalog == nil:
		return nil, fmt.Errorf("catalog is required")
	case cfg.Router == nil:
		return nil, fmt.Errorf("router is required")
	case cfg.Retriever == nil:
		return nil, fmt.Errorf("retriever is required")
	case cfg.Budgeter == nil:
		return nil, fmt.Errorf("budgeter is required")
	case cfg.Assembler == nil:
		return nil, fmt.Errorf("assembler is required")
	case cfg.Chat == nil:
		return nil, fmt.Errorf("chat client is required")
	}
	if cfg.Defaults.Model == "" {
		cfg.Defaults.Model = "gpt-4o-mini"
	}
	if cfg.Defaults.MaxWorkshops <= 0 {
		cfg.Defaults.MaxWorkshops = 2
	}
	if cfg.Defaults.ChunksPerWorkshop <= 0 {
		cfg.Defaults.ChunksPerWorkshop = 3
	}
	if !tokens.KnownModel(cfg.Defaults.Model) {
		return nil, fmt.Errorf("default model: %w", tokens.ErrUnknownModel)
	}
	return &Engine{
		classifier: meta.NewClassifier(),
		answerer:   meta.NewAnswerer(cfg.Catalog),
		router:     cfg.Router,
		retriever:  cfg.Retriever,
		budgeter:   cfg.Budgeter,
		assembler:  cfg.Assembler,
		chat:       cfg.Chat,
		trail:      cfg.Trail,
		defaults:   cfg.Defaults,
		cacheTTL:   cfg.CacheTTL,
	}, nil
}

// Answer handles one question end to end. Recoverable failures come back as
// typed errors; use UserMessage to turn them into chat-safe text.
func (e *Engine) Answer(ctx context.Context, question string, opts Options) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, router.ErrEmptyQuestion
	}
	opts = e.withDefaults(opts)

	category := e.classifier.Classify(question)
	if category != meta.CategoryContent {
		return e.answerMeta(ctx, question, category, opts)
	}
	return e.answerContent(ctx, question, opts)
}

func (e *Engine) withDefaults(opts Options) Options {
	if opts.Model == "" {
		opts.Model = e.defaults.Model
	}
	if opts.MaxWorkshops <= 0 {
		opts.MaxWorkshops = e.defaults.MaxWorkshops
	}
	if opts.ChunksPerWorkshop <= 0 {
		opts.ChunksPerWorkshop = e.defaults.ChunksPerWorkshop
	}
	return opts
}

// answerMeta serves structure/personnel questions from the static catalog.
// No retrieval and no model call: correctness comes from the table alone.
func (e *Engine) answerMeta(ctx context.Context, question string, category meta.Category, opts Options) (Answer, error) {
	text, _ := e.answerer.Answer(question, category)
	ans := Answer{
		Text: text,
		Diagnostics: Diagnostics{
			Category: category,
			MetaPath: true,
		},
	}
	e.logInteraction(ctx, question, &ans, opts)
	return ans, nil
}

func (e *Engine) answerContent(ctx context.Context, question string, opts Options) (Answer, error) {
	if cached, ok := e.cachedAnswer(ctx, question, opts); ok {
		return cached, nil
	}

	routed, err := e.router.Route(ctx, question, router.Options{
		MaxWorkshops: opts.MaxWorkshops,
		Filter:       opts.Filter,
	})
	if err != nil {
		return Answer{}, err
	}
	workshopIDs := routed.IDs()

	systemPrompt := buildSystemPrompt(workshopIDs)
	budget, err := e.budgeter.Compute(opts.Model, systemPrompt, question)
	if err != nil {
		return Answer{}, err
	}

	fetched, err := retrieval.FetchAll(ctx, e.retriever, workshopIDs, question, opts.ChunksPerWorkshop)
	diags := Diagnostics{
		Category:        meta.CategoryContent,
		Workshops:       workshopIDs,
		UsedFallback:    routed.UsedFallback,
		FailedWorkshops: fetched.FailedWorkshops,
		TokensAvailable: budget.AvailableTokens,
		Model:           opts.Model,
	}
	if err != nil {
		return Answer{Diagnostics: diags}, err
	}
	if len(fetched.Chunks) == 0 {
		return Answer{Diagnostics: diags}, ErrNoChunks
	}

	assembled, err := e.assembler.Assemble(fetched.Chunks, budget, assembler.Options{
		ChunksPerWorkshop: opts.ChunksPerWorkshop,
	})
	if err != nil {
		return Answer{Diagnostics: diags}, err
	}
	diags.ChunksUsed = len(assembled.Included)
	diags.TokensUsed = assembled.TokensUsed

	text, err := e.generate(ctx, systemPrompt, question, assembled.Text, budget, opts)
	if err != nil {
		return Answer{Diagnostics: diags}, fmt.Errorf("generate answer: %w", err)
	}

	ans := Answer{
		Text:        text,
		Sources:     assembled.Included,
		Diagnostics: diags,
	}
	e.logInteraction(ctx, question, &ans, opts)
	e.storeCache(ctx, question, opts, ans)

	logger.InfoCF("qa", "Question answered", map[string]any{
		"workshops":   workshopIDs,
		"chunks":      diags.ChunksUsed,
		"tokens_used": diags.TokensUsed,
		"fallback":    diags.UsedFallback,
		"failed":      len(diags.FailedWorkshops),
		"model":       opts.Model,
	})
	return ans, nil
}

func (e *Engine) generate(ctx context.Context, systemPrompt, question, contextText string, budget tokens.ContextBudget, opts Options) (string, error) {
	userPrompt := fmt.Sprintf("Workshop Content:\n%s\n\nQuestion: %s", contextText, question)

	maxCompletion := budget.WindowTokens - budget.ReservedTokens - e.budgeter.Estimator().Count(contextText) - 100
	if maxCompletion > 1500 {
		maxCompletion = 1500
	}
	if maxCompletion < 256 {
		maxCompletion = 256
	}

	temperature := 0.0
	resp, err := e.chat.Chat(ctx, opts.Model, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, llm.ChatOptions{
		MaxTokens:   maxCompletion,
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func buildSystemPrompt(workshopIDs []string) string {
	return fmt.Sprintf(`You are a helpful workshop assistant. Answer questions based only on the workshop transcript sections provided.
If you can't find the answer in the provided sections, say so.

The information comes from workshops: %s.
When referencing information, mention which workshop the information comes from.`,
		strings.Join(workshopIDs, ", "))
}

func (e *Engine) cachedAnswer(ctx context.Context, question string, opts Options) (Answer, bool) {
	if e.trail == nil || e.cacheTTL <= 0 {
		return Answer{}, false
	}
	key := tracklog.CacheKey(question, opts.Model, opts.MaxWorkshops, opts.ChunksPerWorkshop, opts.Filter)
	raw, ok, err := e.trail.GetCache(ctx, key, time.Now().UnixMilli())
	if err != nil || !ok {
		return Answer{}, false
	}
	var ans Answer
	if json.Unmarshal([]byte(raw), &ans) != nil {
		return Answer{}, false
	}
	ans.Diagnostics.CacheHit = true
	return ans, true
}

func (e *Engine) storeCache(ctx context.Context, question string, opts Options, ans Answer) {
	if e.trail == nil || e.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(ans)
	if err != nil {
		return
	}
	key := tracklog.CacheKey(question, opts.Model, opts.MaxWorkshops, opts.ChunksPerWorkshop, opts.Filter)
	expires := time.Now().Add(e.cacheTTL).UnixMilli()
	if err := e.trail.PutCache(ctx, key, string(raw), expires); err != nil {
		logger.WarnCF("qa", "Failed to cache answer", map[string]any{"error": err.Error()})
	}
}

func (e *Engine) logInteraction(ctx context.Context, question string, ans *Answer, opts Options) {
	if e.trail == nil {
		return
	}
	id, err := e.trail.LogInteraction(ctx, tracklog.Interaction{
		Channel:         opts.Channel,
		UserID:          opts.UserID,
		Question:        question,
		Answer:          ans.Text,
		Category:        string(ans.Diagnostics.Category),
		Workshops:       ans.Diagnostics.Workshops,
		UsedFallback:    ans.Diagnostics.UsedFallback,
		ChunksUsed:      ans.Diagnostics.ChunksUsed,
		TokensUsed:      ans.Diagnostics.TokensUsed,
		TokensAvailable: ans.Diagnostics.TokensAvailable,
		Model:           ans.Diagnostics.Model,
	})
	if err != nil {
		logger.WarnCF("qa", "Failed to log interaction", map[string]any{"error": err.Error()})
		return
	}
	ans.InteractionID = id
}

// UserMessage maps answer errors to chat-safe text. Each failure class gets
// a distinct message so users can tell "nothing found" from "too long to
// include" from "store unreachable".
func UserMessage(err error) string {
	switch {
	case errors.Is(err, router.ErrEmptyQuestion):
		return "Please ask a question about the workshops."
	case errors.Is(err, router.ErrNoRelevantWorkshop):
		return "I couldn't determine which workshop covers that. Try mentioning a topic from the course, like prompt engineering or evaluation."
	case errors.Is(err, ErrNoChunks):
		return "No relevant information was found in the workshop transcripts."
	case errors.Is(err, assembler.ErrNothingFits):
		return "The most relevant section is too long to include for this model. Please ask a more specific question."
	case errors.Is(err, retrieval.ErrAllRetrievalsFailed):
		return "I couldn't reach the workshop content right now. Please try again in a moment."
	case errors.Is(err, tokens.ErrUnknownModel), errors.Is(err, tokens.ErrBudgetTooSmall), errors.Is(err, tokens.ErrBadFractions), errors.Is(err, tokens.ErrEstimatorMismatch):
		return "The bot's model configuration is invalid; please contact the course team."
	default:
		return "Something went wrong answering that question. Please try again."
	}
}
