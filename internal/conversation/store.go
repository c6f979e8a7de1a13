package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default values applied by NewStore when Config fields are zero.
const (
	// DefaultMaxHistory is the number of messages retained per conversation.
	DefaultMaxHistory = 10

	// DefaultTTL is how long an idle conversation survives, measured from
	// its last update.
	DefaultTTL = time.Hour

	// DefaultSweepInterval is the cadence of the background expiry sweep.
	DefaultSweepInterval = time.Hour
)

// Config contains the tunables for a Store.
type Config struct {
	MaxHistory    int           // messages retained per conversation (sliding window)
	TTL           time.Duration // idle lifetime measured from last update
	SweepInterval time.Duration // cadence of the background expiry sweep
}

// Store is the process-wide conversation registry.
//
// mu guards the id map; each conversation carries its own mutex so that
// concurrent appends to different conversations do not contend, while
// appends to the same conversation are serialized with the capacity trim.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu     sync.RWMutex
	convs  map[uuid.UUID]*conversation
	cfg    Config
	logger *slog.Logger
}

// NewStore creates a Store with the given configuration.
// Zero-valued Config fields fall back to package defaults.
func NewStore(cfg Config, logger *slog.Logger) *Store {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		convs:  make(map[uuid.UUID]*conversation),
		cfg:    cfg,
		logger: logger,
	}
}

// Create allocates a new conversation with empty history and returns its id.
// Create always succeeds.
func (s *Store) Create() uuid.UUID {
	now := time.Now()
	c := &conversation{
		id:        uuid.New(),
		createdAt: now,
		updatedAt: now,
	}

	s.mu.Lock()
	s.convs[c.id] = c
	s.mu.Unlock()

	s.logger.Debug("created conversation", "id", c.id)
	return c.id
}

// Exists reports whether the given conversation id is known.
func (s *Store) Exists(id uuid.UUID) bool {
	s.mu.RLock()
	_, ok := s.convs[id]
	s.mu.RUnlock()
	return ok
}

// History returns a copy of the retained messages for a conversation, oldest
// first. If limit > 0, only the most recent limit messages are returned.
// Unknown ids yield an empty slice, never an error.
func (s *Store) History(id uuid.UUID, limit int) []Message {
	s.mu.RLock()
	c, ok := s.convs[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := c.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// RecentContext returns at most maxMessages of the most recent history,
// oldest first. It is the bounded form of History intended for prompt
// construction.
func (s *Store) RecentContext(id uuid.UUID, maxMessages int) []Message {
	return s.History(id, maxMessages)
}

// Append adds a message to a conversation, refreshes its updated_at, and
// trims the history to the configured window, dropping oldest first.
//
// Appends to unknown ids are silently ignored: the caller may race with the
// expiry sweep, and losing bookkeeping for an evicted conversation is
// preferable to resurrecting it.
func (s *Store) Append(id uuid.UUID, role, content string, metadata map[string]any) {
	s.mu.RLock()
	c, ok := s.convs[id]
	s.mu.RUnlock()
	if !ok {
		s.logger.Debug("append to unknown conversation ignored", "id", id)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
	c.updatedAt = time.Now()

	if n := len(c.messages); n > s.cfg.MaxHistory {
		c.messages = append(c.messages[:0:0], c.messages[n-s.cfg.MaxHistory:]...)
	}
}

// Delete removes the addressed conversation and reports whether it existed.
func (s *Store) Delete(id uuid.UUID) bool {
	s.mu.Lock()
	_, ok := s.convs[id]
	delete(s.convs, id)
	s.mu.Unlock()

	if ok {
		s.logger.Debug("deleted conversation", "id", id)
	}
	return ok
}

// SweepExpired removes every conversation idle for longer than the
// configured TTL, measured from its last update, and returns the count
// removed. Conversations touched more recently are never removed.
func (s *Store) SweepExpired() int {
	cutoff := time.Now().Add(-s.cfg.TTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.convs {
		c.mu.Lock()
		expired := c.updatedAt.Before(cutoff)
		c.mu.Unlock()

		if expired {
			delete(s.convs, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("swept expired conversations", "removed", removed, "remaining", len(s.convs))
	}
	return removed
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

// Run executes the expiry sweep on the configured interval until ctx is
// canceled. It is intended to run as a background goroutine for the lifetime
// of the process.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired()
		}
	}
}
