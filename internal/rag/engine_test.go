package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/erikprakoso/rag-axel-backend/internal/conversation"
	"github.com/erikprakoso/rag-axel-backend/internal/knowledge"
)

type fakeRetriever struct {
	passages  []knowledge.Passage
	err       error
	lastQuery string
}

func (f *fakeRetriever) Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Passage, error) {
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	return f.passages, nil
}

type fakeGenerator struct {
	answer     string
	chunks     []string
	err        error
	lastPrompt string
	lastSystem string
}

func (f *fakeGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	f.lastSystem = system
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, system, prompt string, onChunk func(string) error) (string, error) {
	f.lastSystem = system
	f.lastPrompt = prompt
	var full strings.Builder
	for _, chunk := range f.chunks {
		if err := onChunk(chunk); err != nil {
			return "", err
		}
		full.WriteString(chunk)
	}
	if f.err != nil {
		return "", f.err
	}
	return full.String(), nil
}

type testEngine struct {
	engine    *Engine
	store     *conversation.Store
	recorder  *conversation.Recorder
	retriever *fakeRetriever
	generator *fakeGenerator
}

func newTestEngine(t *testing.T, retriever *fakeRetriever, generator *fakeGenerator) *testEngine {
	t.Helper()

	store := conversation.NewStore(conversation.Config{}, nil)
	recorder := conversation.NewRecorder(store, 16, nil)

	engine, err := NewEngine(Config{
		Conversations: store,
		Recorder:      recorder,
		Retriever:     retriever,
		Generator:     generator,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return &testEngine{
		engine:    engine,
		store:     store,
		recorder:  recorder,
		retriever: retriever,
		generator: generator,
	}
}

// drain flushes the recorder so history assertions see the turn.
func (te *testEngine) drain() {
	te.recorder.Close()
}

func TestEngineAnsweredBranch(t *testing.T) {
	te := newTestEngine(t,
		&fakeRetriever{passages: scored(0.9)},
		&fakeGenerator{answer: "rate limiting caps request rates."},
	)

	resp := te.engine.Ask(context.Background(), Request{Question: "What is rate limiting?"})

	if resp.Outcome != OutcomeAnswered {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, OutcomeAnswered)
	}
	if resp.Answer != "rate limiting caps request rates." {
		t.Errorf("Answer = %q, want generator output", resp.Answer)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("Sources length = %d, want 1", len(resp.Sources))
	}
	if resp.MaxScore != 0.9 {
		t.Errorf("MaxScore = %v, want 0.9", resp.MaxScore)
	}
	if resp.ConversationID == uuid.Nil {
		t.Error("ConversationID is nil")
	}

	te.drain()
	history := te.store.History(resp.ConversationID, 0)
	if len(history) != 2 {
		t.Fatalf("recorded %d messages, want 2", len(history))
	}
	if history[0].Role != conversation.RoleUser || history[1].Role != conversation.RoleAssistant {
		t.Errorf("recorded roles = %q, %q, want user then assistant", history[0].Role, history[1].Role)
	}
	if history[1].Metadata["outcome"] != string(OutcomeAnswered) {
		t.Errorf("recorded outcome = %v, want %q", history[1].Metadata["outcome"], OutcomeAnswered)
	}
	if history[1].Metadata["relevant_found"] != true {
		t.Errorf("recorded relevant_found = %v, want true", history[1].Metadata["relevant_found"])
	}
}

func TestEngineNoEvidenceBranch(t *testing.T) {
	te := newTestEngine(t, &fakeRetriever{}, &fakeGenerator{answer: "must not be called"})

	resp := te.engine.Ask(context.Background(), Request{Question: "anything"})

	if resp.Outcome != OutcomeNoEvidence {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, OutcomeNoEvidence)
	}
	if resp.Answer != noEvidenceMessage {
		t.Errorf("Answer = %q, want canned no-evidence message", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("Sources length = %d, want 0", len(resp.Sources))
	}
	if te.generator.lastPrompt != "" {
		t.Error("generator was called on the no-evidence branch")
	}

	te.drain()
	if got := len(te.store.History(resp.ConversationID, 0)); got != 2 {
		t.Errorf("recorded %d messages, want 2", got)
	}
}

func TestEngineLowRelevanceBranch(t *testing.T) {
	te := newTestEngine(t, &fakeRetriever{passages: scored(0.25, 0.21)}, &fakeGenerator{})

	resp := te.engine.Ask(context.Background(), Request{Question: "anything"})

	if resp.Outcome != OutcomeLowRelevance {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, OutcomeLowRelevance)
	}
	if resp.Answer != lowRelevanceMessage {
		t.Errorf("Answer = %q, want canned low-relevance message", resp.Answer)
	}
	// Near-miss sources stay visible for transparency.
	if len(resp.Sources) != 2 {
		t.Errorf("Sources length = %d, want 2", len(resp.Sources))
	}
	if te.generator.lastPrompt != "" {
		t.Error("generator was called on the low-relevance branch")
	}

	te.drain()
	history := te.store.History(resp.ConversationID, 0)
	if len(history) != 2 {
		t.Fatalf("recorded %d messages, want 2", len(history))
	}
	if history[1].Metadata["relevant_found"] != false {
		t.Errorf("recorded relevant_found = %v, want false", history[1].Metadata["relevant_found"])
	}
}

func TestEngineRetrievalFailureDegrades(t *testing.T) {
	te := newTestEngine(t,
		&fakeRetriever{err: errors.New("vector store down")},
		&fakeGenerator{},
	)

	resp := te.engine.Ask(context.Background(), Request{Question: "anything"})

	if resp.Outcome != OutcomeDegraded {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, OutcomeDegraded)
	}
	if resp.Answer != degradedMessage {
		t.Errorf("Answer = %q, want degraded message", resp.Answer)
	}

	te.drain()
	if got := len(te.store.History(resp.ConversationID, 0)); got != 2 {
		t.Errorf("recorded %d messages, want 2", got)
	}
}

func TestEngineGenerationFailureDegrades(t *testing.T) {
	te := newTestEngine(t,
		&fakeRetriever{passages: scored(0.9)},
		&fakeGenerator{err: errors.New("model offline")},
	)

	resp := te.engine.Ask(context.Background(), Request{Question: "anything"})

	if resp.Outcome != OutcomeDegraded {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, OutcomeDegraded)
	}
	if resp.Answer != degradedMessage {
		t.Errorf("Answer = %q, want degraded message", resp.Answer)
	}
	// Evidence was fine; only generation failed.
	if len(resp.Sources) != 1 {
		t.Errorf("Sources length = %d, want 1", len(resp.Sources))
	}

	te.drain()
	if got := len(te.store.History(resp.ConversationID, 0)); got != 2 {
		t.Errorf("recorded %d messages, want 2", got)
	}
}

func TestEngineUnknownConversationID(t *testing.T) {
	te := newTestEngine(t, &fakeRetriever{passages: scored(0.9)}, &fakeGenerator{answer: "a"})

	unknown := uuid.New()
	resp := te.engine.Ask(context.Background(), Request{
		ConversationID: unknown,
		Question:       "q",
	})

	if resp.ConversationID == unknown {
		t.Error("unknown conversation ID was reused instead of replaced")
	}
	if resp.ConversationID == uuid.Nil {
		t.Error("ConversationID is nil")
	}
}

func TestEngineReusesExistingConversation(t *testing.T) {
	te := newTestEngine(t, &fakeRetriever{passages: scored(0.9)}, &fakeGenerator{answer: "a"})

	id := te.store.Create()
	te.store.Append(id, conversation.RoleUser, "how does auth work?", nil)
	te.store.Append(id, conversation.RoleAssistant, "with api keys.", nil)

	resp := te.engine.Ask(context.Background(), Request{ConversationID: id, Question: "what about limits?"})

	if resp.ConversationID != id {
		t.Errorf("ConversationID = %v, want %v", resp.ConversationID, id)
	}
	// History flows into the prompt.
	if !strings.Contains(te.generator.lastPrompt, "how does auth work?") {
		t.Errorf("prompt missing conversation history:\n%s", te.generator.lastPrompt)
	}
}

func TestEngineEnhancedQueryUsedForRetrievalOnly(t *testing.T) {
	te := newTestEngine(t, &fakeRetriever{passages: scored(0.9)}, &fakeGenerator{answer: "a"})

	id := te.store.Create()
	te.store.Append(id, conversation.RoleUser, "first question", nil)
	te.store.Append(id, conversation.RoleUser, "second question", nil)

	te.engine.Ask(context.Background(), Request{ConversationID: id, Question: "third?"})

	if !strings.Contains(te.retriever.lastQuery, "[Context:") {
		t.Errorf("retrieval query = %q, want enhanced form", te.retriever.lastQuery)
	}
	// The prompt keeps the user's question verbatim, never the rewrite.
	if strings.Contains(te.generator.lastPrompt, "[Context:") {
		t.Errorf("prompt contains enhanced query:\n%s", te.generator.lastPrompt)
	}
	if !strings.Contains(te.generator.lastPrompt, "Question: third?") {
		t.Errorf("prompt missing verbatim question:\n%s", te.generator.lastPrompt)
	}
}

func collectFragments(t *testing.T, te *testEngine, req Request) []Fragment {
	t.Helper()
	var fragments []Fragment
	err := te.engine.AskStream(context.Background(), req, func(f Fragment) error {
		fragments = append(fragments, f)
		return nil
	})
	if err != nil {
		t.Fatalf("AskStream() error = %v", err)
	}
	return fragments
}

func TestEngineStreamMatchesBuffered(t *testing.T) {
	chunks := []string{"rate limiting ", "caps ", "request rates."}

	streamed := newTestEngine(t,
		&fakeRetriever{passages: scored(0.9)},
		&fakeGenerator{chunks: chunks},
	)
	fragments := collectFragments(t, streamed, Request{Question: "What is rate limiting?"})

	buffered := newTestEngine(t,
		&fakeRetriever{passages: scored(0.9)},
		&fakeGenerator{answer: strings.Join(chunks, "")},
	)
	resp := buffered.engine.Ask(context.Background(), Request{Question: "What is rate limiting?"})

	var concat strings.Builder
	finals := 0
	for i, f := range fragments {
		if f.Final {
			finals++
			if i != len(fragments)-1 {
				t.Error("final marker emitted before the end of the stream")
			}
			if f.Content != "" {
				t.Errorf("final fragment content = %q, want empty", f.Content)
			}
			continue
		}
		concat.WriteString(f.Content)
	}
	if finals != 1 {
		t.Errorf("final marker count = %d, want exactly 1", finals)
	}
	if concat.String() != resp.Answer {
		t.Errorf("streamed text = %q, buffered = %q, want equal", concat.String(), resp.Answer)
	}

	streamed.drain()
	history := streamed.store.History(fragments[0].ConversationID, 0)
	if len(history) != 2 {
		t.Fatalf("recorded %d messages, want 2", len(history))
	}
	if history[1].Content != resp.Answer {
		t.Errorf("recorded answer = %q, want %q", history[1].Content, resp.Answer)
	}
}

func TestEngineStreamCannedBranches(t *testing.T) {
	tests := []struct {
		name      string
		retriever *fakeRetriever
		want      string
	}{
		{"no evidence", &fakeRetriever{}, noEvidenceMessage},
		{"low relevance", &fakeRetriever{passages: scored(0.25)}, lowRelevanceMessage},
		{"retrieval failure", &fakeRetriever{err: errors.New("down")}, degradedMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, tt.retriever, &fakeGenerator{})
			fragments := collectFragments(t, te, Request{Question: "q"})

			if len(fragments) != 2 {
				t.Fatalf("fragment count = %d, want 2 (message + final)", len(fragments))
			}
			if fragments[0].Content != tt.want {
				t.Errorf("fragment content = %q, want %q", fragments[0].Content, tt.want)
			}
			if !fragments[1].Final || fragments[1].Content != "" {
				t.Errorf("last fragment = %+v, want empty final marker", fragments[1])
			}

			te.drain()
			if got := len(te.store.History(fragments[0].ConversationID, 0)); got != 2 {
				t.Errorf("recorded %d messages, want 2", got)
			}
		})
	}
}

func TestEngineStreamGenerationFailure(t *testing.T) {
	te := newTestEngine(t,
		&fakeRetriever{passages: scored(0.9)},
		&fakeGenerator{chunks: []string{"partial "}, err: errors.New("model died")},
	)

	fragments := collectFragments(t, te, Request{Question: "q"})

	last := fragments[len(fragments)-1]
	if !last.Final || last.Content != "" {
		t.Errorf("last fragment = %+v, want empty final marker", last)
	}
	// The degraded notice still reaches the client before the marker.
	if fragments[len(fragments)-2].Content != degradedMessage {
		t.Errorf("penultimate fragment = %q, want degraded message",
			fragments[len(fragments)-2].Content)
	}

	te.drain()
	history := te.store.History(fragments[0].ConversationID, 0)
	if len(history) != 2 {
		t.Fatalf("recorded %d messages, want 2", len(history))
	}
	if !strings.HasPrefix(history[1].Content, "partial ") {
		t.Errorf("recorded answer = %q, want partial text preserved", history[1].Content)
	}
	if history[1].Metadata["outcome"] != string(OutcomeDegraded) {
		t.Errorf("recorded outcome = %v, want %q", history[1].Metadata["outcome"], OutcomeDegraded)
	}
}

func TestEngineStreamClientGone(t *testing.T) {
	te := newTestEngine(t,
		&fakeRetriever{passages: scored(0.9)},
		&fakeGenerator{chunks: []string{"first ", "second ", "third"}},
	)

	clientErr := errors.New("client disconnected")
	var convID uuid.UUID
	calls := 0
	err := te.engine.AskStream(context.Background(), Request{Question: "q"}, func(f Fragment) error {
		calls++
		convID = f.ConversationID
		if calls > 1 {
			return clientErr
		}
		return nil
	})
	if !errors.Is(err, clientErr) {
		t.Errorf("AskStream() error = %v, want client error", err)
	}

	te.drain()
	// The partial answer is still recorded.
	history := te.store.History(convID, 0)
	if len(history) != 2 {
		t.Fatalf("recorded %d messages, want 2", len(history))
	}
	if history[1].Content != "first " {
		t.Errorf("recorded answer = %q, want the delivered partial text", history[1].Content)
	}
}

func TestEngineEndToEndExample(t *testing.T) {
	te := newTestEngine(t,
		&fakeRetriever{passages: scored(0.9)},
		&fakeGenerator{answer: "rate limiting caps how many requests a client may send."},
	)

	resp := te.engine.Ask(context.Background(), Request{Question: "What is rate limiting?"})

	if resp.Outcome != OutcomeAnswered {
		t.Errorf("Outcome = %q, want %q", resp.Outcome, OutcomeAnswered)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("Sources length = %d, want 1", len(resp.Sources))
	}

	te.drain()
	if got := len(te.store.History(resp.ConversationID, 0)); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}
}
