// Package rag orchestrates the ask-a-question workflow: resolve the
// conversation, enhance the query, retrieve evidence, gate it by
// relevance, and generate an answer in buffered or streaming mode.
package rag

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/erikprakoso/rag-axel-backend/internal/conversation"
	"github.com/erikprakoso/rag-axel-backend/internal/knowledge"
)

// Outcome names the terminal branch an ask-cycle ended in.
type Outcome string

const (
	OutcomeAnswered     Outcome = "answered"
	OutcomeNoEvidence   Outcome = "no_evidence"
	OutcomeLowRelevance Outcome = "low_relevance"
	OutcomeDegraded     Outcome = "degraded"
)

// Canned answers for the non-generated terminal branches.
const (
	noEvidenceMessage = "I could not find any relevant information in the documentation for that question."

	lowRelevanceMessage = "The documentation I found does not seem relevant enough to answer that reliably. Try rephrasing the question or adding more detail."

	degradedMessage = "Something went wrong while answering your question. Please try again in a moment."
)

// Default tuning values, all overridable via Config.
const (
	DefaultTopK               = 3
	DefaultScoreThreshold     = 0.2
	DefaultRelevanceThreshold = 0.3
	DefaultHistoryWindow      = 3
)

// Retriever fetches scored passages for a query. *knowledge.Store
// satisfies it.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Passage, error)
}

// Generator produces answer text from a system persona and a prompt.
// *ModelGenerator satisfies it.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	GenerateStream(ctx context.Context, system, prompt string, onChunk func(string) error) (string, error)
}

// Request is one ask-cycle input. A nil ConversationID, or an unknown
// one, starts a fresh conversation.
type Request struct {
	ConversationID uuid.UUID
	Question       string
	Domain         string // optional retrieval filter
}

// Source is a passage cited in a response.
type Source struct {
	DocumentID string            `json:"document_id"`
	Content    string            `json:"content"`
	Score      float32           `json:"score"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Response is the buffered-mode result of an ask-cycle.
type Response struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Answer         string    `json:"answer"`
	Outcome        Outcome   `json:"outcome"`
	Sources        []Source  `json:"sources"`
	MaxScore       float32   `json:"max_score"`
}

// Fragment is one streaming-mode event. The stream's last event always
// has Final set and empty Content, whether generation succeeded or not.
type Fragment struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
	Final          bool      `json:"final"`
}

// StreamFunc receives fragments in order. Returning an error aborts the
// stream; the engine still records whatever answer text was produced.
type StreamFunc func(Fragment) error

// Config wires an Engine. Conversations, Recorder, Retriever, and
// Generator are required; zero-valued tuning fields take the defaults.
type Config struct {
	Conversations *conversation.Store
	Recorder      *conversation.Recorder
	Retriever     Retriever
	Generator     Generator
	Logger        *slog.Logger

	TopK               int     // passages fetched per query
	ScoreThreshold     float32 // retrieval-time similarity floor
	RelevanceThreshold float32 // answer-worthiness bar on the max score
	HistoryWindow      int     // messages fed to enhancement and prompting
}

func (c *Config) validate() error {
	if c.Conversations == nil {
		return errors.New("conversation store is required")
	}
	if c.Recorder == nil {
		return errors.New("turn recorder is required")
	}
	if c.Retriever == nil {
		return errors.New("retriever is required")
	}
	if c.Generator == nil {
		return errors.New("generator is required")
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.ScoreThreshold == 0 {
		c.ScoreThreshold = DefaultScoreThreshold
	}
	if c.RelevanceThreshold == 0 {
		c.RelevanceThreshold = DefaultRelevanceThreshold
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Engine runs the ask-cycle state machine. It is safe for concurrent use.
//
// Failures in retrieval or generation never surface as errors to the
// caller: they fold into a degraded answer within the branch the cycle
// would otherwise have reached, and the turn is still recorded.
type Engine struct {
	cfg Config
}

// NewEngine validates the config and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// gated is the shared front half of both modes: conversation resolution,
// query enhancement, retrieval, and relevance gating.
type gated struct {
	conversationID uuid.UUID
	history        []conversation.Message
	passages       []knowledge.Passage
	maxScore       float32
	outcome        Outcome // set for terminal branches decided before generation
	answer         string  // canned answer for those branches
}

func (e *Engine) gate(ctx context.Context, req Request) gated {
	id := req.ConversationID
	if id == uuid.Nil || !e.cfg.Conversations.Exists(id) {
		id = e.cfg.Conversations.Create()
	}
	history := e.cfg.Conversations.History(id, e.cfg.HistoryWindow)

	enhanced := enhanceQuery(req.Question, history)
	if enhanced != req.Question {
		e.cfg.Logger.Debug("enhanced query", "conversation_id", id, "query", enhanced)
	}

	g := gated{conversationID: id, history: history}

	passages, err := e.cfg.Retriever.Search(ctx, enhanced,
		knowledge.WithTopK(e.cfg.TopK),
		knowledge.WithMinScore(e.cfg.ScoreThreshold),
		knowledge.WithDomain(req.Domain),
	)
	if err != nil {
		e.cfg.Logger.Error("retrieval failed", "conversation_id", id, "error", err)
		g.outcome = OutcomeDegraded
		g.answer = degradedMessage
		return g
	}
	// The store already filters in SQL; re-applying the floor keeps the
	// gate correct for retrievers that do not.
	passages = acceptPassages(passages, e.cfg.ScoreThreshold)
	g.passages = passages

	max, ok := maxScore(passages)
	if !ok {
		g.outcome = OutcomeNoEvidence
		g.answer = noEvidenceMessage
		return g
	}
	g.maxScore = max

	if max < e.cfg.RelevanceThreshold {
		e.cfg.Logger.Info("evidence below relevance bar",
			"conversation_id", id, "max_score", max,
			"threshold", e.cfg.RelevanceThreshold)
		g.outcome = OutcomeLowRelevance
		g.answer = lowRelevanceMessage
		return g
	}
	return g
}

// record schedules the turn append. It runs on every terminal branch.
func (e *Engine) record(id uuid.UUID, question, answer string, outcome Outcome, g gated) {
	e.cfg.Recorder.Record(conversation.Turn{
		ConversationID: id,
		Question:       question,
		Answer:         answer,
		Metadata: map[string]any{
			"outcome":        string(outcome),
			"relevant_found": outcome == OutcomeAnswered,
			"max_score":      g.maxScore,
			"source_count":   len(g.passages),
		},
	})
}

func sourcesFrom(passages []knowledge.Passage) []Source {
	sources := make([]Source, 0, len(passages))
	for _, p := range passages {
		sources = append(sources, Source{
			DocumentID: p.Document.ID,
			Content:    p.Document.Content,
			Score:      p.Score,
			Metadata:   p.Document.Metadata,
		})
	}
	return sources
}

// Ask runs one buffered ask-cycle.
func (e *Engine) Ask(ctx context.Context, req Request) *Response {
	g := e.gate(ctx, req)

	switch g.outcome {
	case OutcomeDegraded:
		resp := &Response{
			ConversationID: g.conversationID,
			Answer:         g.answer,
			Outcome:        OutcomeDegraded,
			Sources:        []Source{},
		}
		e.record(g.conversationID, req.Question, g.answer, OutcomeDegraded, g)
		return resp
	case OutcomeNoEvidence:
		resp := &Response{
			ConversationID: g.conversationID,
			Answer:         g.answer,
			Outcome:        OutcomeNoEvidence,
			Sources:        []Source{},
		}
		e.record(g.conversationID, req.Question, g.answer, OutcomeNoEvidence, g)
		return resp
	case OutcomeLowRelevance:
		// Sources stay visible so the caller can judge the near-misses.
		resp := &Response{
			ConversationID: g.conversationID,
			Answer:         g.answer,
			Outcome:        OutcomeLowRelevance,
			Sources:        sourcesFrom(g.passages),
			MaxScore:       g.maxScore,
		}
		e.record(g.conversationID, req.Question, g.answer, OutcomeLowRelevance, g)
		return resp
	}

	prompt := buildPrompt(req.Question, g.passages, g.history, true)
	answer, err := e.cfg.Generator.Generate(ctx, systemPersona, prompt)
	outcome := OutcomeAnswered
	if err != nil {
		e.cfg.Logger.Error("generation failed",
			"conversation_id", g.conversationID, "error", err)
		answer = degradedMessage
		outcome = OutcomeDegraded
	}

	resp := &Response{
		ConversationID: g.conversationID,
		Answer:         answer,
		Outcome:        outcome,
		Sources:        sourcesFrom(g.passages),
		MaxScore:       g.maxScore,
	}
	e.record(g.conversationID, req.Question, answer, outcome, g)
	return resp
}

// AskStream runs one streaming ask-cycle, emitting answer fragments as
// they are produced. The final event always carries the final marker
// with empty content, even when generation fails or the terminal branch
// is canned. The returned error reports only emit failures (a gone
// client); pipeline failures degrade in-stream instead.
func (e *Engine) AskStream(ctx context.Context, req Request, emit StreamFunc) error {
	g := e.gate(ctx, req)

	finish := func(answer string, outcome Outcome, emitErr error) error {
		e.record(g.conversationID, req.Question, answer, outcome, g)
		if emitErr != nil {
			return emitErr
		}
		return emit(Fragment{ConversationID: g.conversationID, Final: true})
	}

	if g.outcome != "" {
		if err := emit(Fragment{ConversationID: g.conversationID, Content: g.answer}); err != nil {
			return finish(g.answer, g.outcome, err)
		}
		return finish(g.answer, g.outcome, nil)
	}

	prompt := buildPrompt(req.Question, g.passages, g.history, false)

	var (
		accumulated string
		emitFailed  error
	)
	full, err := e.cfg.Generator.GenerateStream(ctx, systemPersona, prompt, func(chunk string) error {
		if err := emit(Fragment{ConversationID: g.conversationID, Content: chunk}); err != nil {
			emitFailed = err
			return err
		}
		accumulated += chunk
		return nil
	})
	if err != nil {
		// A gone client aborts the stream mid-answer; the partial text
		// is still recorded so the conversation stays coherent.
		if emitFailed != nil {
			return finish(accumulated, OutcomeAnswered, emitFailed)
		}
		e.cfg.Logger.Error("streaming generation failed",
			"conversation_id", g.conversationID, "error", err)
		answer := accumulated + degradedMessage
		if emitErr := emit(Fragment{ConversationID: g.conversationID, Content: degradedMessage}); emitErr != nil {
			return finish(answer, OutcomeDegraded, emitErr)
		}
		return finish(answer, OutcomeDegraded, nil)
	}

	if full != "" {
		accumulated = full
	}
	return finish(accumulated, OutcomeAnswered, nil)
}
