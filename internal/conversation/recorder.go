package conversation

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultQueueSize is the recorder's work-queue capacity.
const DefaultQueueSize = 256

// Turn is one completed user/assistant exchange to be appended to a
// conversation's history. Metadata is attached to the assistant message
// only (retrieval observability belongs to the answer, not the question).
type Turn struct {
	ConversationID uuid.UUID
	Question       string
	Answer         string
	Metadata       map[string]any
}

// Recorder persists completed turns out-of-band so that conversation
// bookkeeping never adds latency to the answer path.
//
// Delivery is at-least-once, best-effort: a turn accepted by Record is
// eventually written by the worker (user message before assistant message),
// but if the queue is full the turn is dropped with a warning rather than
// blocking the caller. Recording failures never affect the caller-visible
// outcome of a request.
type Recorder struct {
	store  *Store
	queue  chan Turn
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewRecorder creates a Recorder backed by the given Store and starts its
// worker goroutine. queueSize <= 0 falls back to DefaultQueueSize.
// Call Close to drain the queue and stop the worker.
func NewRecorder(store *Store, queueSize int, logger *slog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		store:  store,
		queue:  make(chan Turn, queueSize),
		logger: logger,
	}

	r.wg.Add(1)
	go r.work()

	return r
}

// Record schedules the turn for background persistence and returns
// immediately. The user message is always written before the assistant
// message; turns for the same conversation are written in the order they
// were recorded (single worker).
func (r *Recorder) Record(t Turn) {
	select {
	case r.queue <- t:
	default:
		// Best-effort contract: dropping history beats blocking the
		// response path.
		r.logger.Warn("turn recorder queue full, dropping turn",
			"conversation_id", t.ConversationID)
	}
}

// Close stops accepting turns, drains the queue, and waits for the worker
// to exit. Record must not be called after Close.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	r.wg.Wait()
}

// work consumes the queue until it is closed. A single worker preserves
// turn ordering across the whole store.
func (r *Recorder) work() {
	defer r.wg.Done()

	for t := range r.queue {
		r.store.Append(t.ConversationID, RoleUser, t.Question, nil)
		r.store.Append(t.ConversationID, RoleAssistant, t.Answer, t.Metadata)
	}
}
