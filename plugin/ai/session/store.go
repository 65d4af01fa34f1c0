package session

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pachverse/sitechat/plugin/ai"
)

const (
	// DefaultCapacity bounds the number of concurrent sessions.
	DefaultCapacity = 1000
	// DefaultTTL is the idle time after which a session expires.
	DefaultTTL = 30 * time.Minute
	// DefaultHistoryCap bounds the per-session message list.
	DefaultHistoryCap = 20
	// DefaultSweepInterval is how often the background sweep runs.
	DefaultSweepInterval = 5 * time.Minute
)

// Config holds the session store limits.
type Config struct {
	Capacity      int
	TTL           time.Duration
	HistoryCap    int
	MaxRounds     int
	SweepInterval time.Duration
}

// Store is a capacity-bounded, TTL-expiring session map. Eviction is
// least-recently-used when over capacity; expiry is checked lazily on every
// access. The background sweep only reclaims memory and logs counts;
// correctness never depends on it running.
type Store struct {
	mu    sync.Mutex
	cfg   Config
	items map[string]*entry
	order *list.List // front = most recently used

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type entry struct {
	session *sessionState
	element *list.Element
}

type sessionState struct {
	id         string
	createdAt  time.Time
	lastActive time.Time
	rounds     int
	language   string
	messages   []Message
}

// NewStore creates a session store and starts its background sweep.
// Call Close to stop the sweep and drop all sessions.
func NewStore(cfg Config) *Store {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = DefaultHistoryCap
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		cfg:    cfg,
		items:  make(map[string]*entry),
		order:  list.New(),
		ctx:    ctx,
		cancel: cancel,
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// Close stops the background sweep and releases all sessions.
func (s *Store) Close() {
	s.cancel()
	s.wg.Wait()

	if n := s.RemoveAll(); n > 0 {
		slog.Info("sessions cleared", "count", n)
	}
}

// GetOrCreate returns the session for id, creating it when unseen. The
// access refreshes last-active and LRU position.
func (s *Store) GetOrCreate(id, language string) Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.lookup(id, now); ok {
		e.session.lastActive = now
		s.order.MoveToFront(e.element)
		return snapshot(e.session)
	}

	// Evict least-recently-used sessions when at capacity.
	for len(s.items) >= s.cfg.Capacity {
		s.evictOldest()
	}

	state := &sessionState{
		id:         id,
		createdAt:  now,
		lastActive: now,
		language:   language,
	}
	e := &entry{session: state}
	e.element = s.order.PushFront(e)
	s.items[id] = e

	slog.Info("session created", "session_id", id, "language", language)
	return snapshot(state)
}

// Get returns a snapshot of the session, reporting whether it exists and has
// not expired.
func (s *Store) Get(id string) (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(id, time.Now())
	if !ok {
		return Info{}, false
	}
	return snapshot(e.session), true
}

// Resolve tags the session state for an incoming user turn: ok, unknown, or
// at its round limit.
func (s *Store) Resolve(id string) (Info, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(id, time.Now())
	if !ok {
		return Info{}, StatusNotFound
	}
	info := snapshot(e.session)
	if s.cfg.MaxRounds > 0 && e.session.rounds >= s.cfg.MaxRounds {
		return info, StatusLimitExceeded
	}
	return info, StatusOK
}

// RoundLimitReached reports whether the session has used up its rounds.
// Unknown sessions report false.
func (s *Store) RoundLimitReached(id string) bool {
	_, status := s.Resolve(id)
	return status == StatusLimitExceeded
}

// Append adds a message to the session history. Appending to an unknown or
// expired session is a logged no-op, never an error. User-authored messages
// bump the round count; history beyond the cap is dropped oldest-first.
func (s *Store) Append(id string, role ai.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.lookup(id, now)
	if !ok {
		slog.Warn("append to unknown session", "session_id", id, "role", role)
		return
	}

	state := e.session
	state.messages = append(state.messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	if role == ai.RoleUser {
		state.rounds++
	}
	state.lastActive = now
	s.order.MoveToFront(e.element)

	// Sliding window over the full history, independent of role.
	if len(state.messages) > s.cfg.HistoryCap {
		state.messages = state.messages[len(state.messages)-s.cfg.HistoryCap:]
	}
}

// Messages returns the session history, newest last. A positive limit
// returns only the most recent messages. Unknown sessions return an empty
// slice.
func (s *Store) Messages(id string, limit int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(id, time.Now())
	if !ok {
		return []Message{}
	}

	messages := e.session.messages
	if limit > 0 && limit < len(messages) {
		messages = messages[len(messages)-limit:]
	}

	result := make([]Message, len(messages))
	copy(result, messages)
	return result
}

// Remove deletes the session. Removing an unknown session is a logged no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		slog.Warn("remove of unknown session", "session_id", id)
		return
	}
	s.removeEntry(e)
	slog.Info("session removed", "session_id", id)
}

// RemoveAll drops every session and returns how many were dropped.
func (s *Store) RemoveAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.items)
	s.items = make(map[string]*entry)
	s.order.Init()
	return count
}

// MaxRounds returns the configured per-session round limit.
func (s *Store) MaxRounds() int {
	return s.cfg.MaxRounds
}

// Count returns the number of live sessions. Expired-but-unswept entries are
// included; they disappear on next access or sweep.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Stats summarizes the live sessions.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		ActiveSessions:       len(s.items),
		LanguageDistribution: make(map[string]int),
	}
	totalRounds := 0
	for _, e := range s.items {
		stats.LanguageDistribution[e.session.language]++
		totalRounds += e.session.rounds
	}
	if len(s.items) > 0 {
		stats.AverageRounds = float64(totalRounds) / float64(len(s.items))
	}
	return stats
}

// lookup finds a live entry, reaping it if expired. Callers must hold mu.
func (s *Store) lookup(id string, now time.Time) (*entry, bool) {
	e, ok := s.items[id]
	if !ok {
		return nil, false
	}
	if now.Sub(e.session.lastActive) > s.cfg.TTL {
		s.removeEntry(e)
		slog.Debug("session expired on access", "session_id", id)
		return nil, false
	}
	return e, true
}

// evictOldest removes the least-recently-used session. Callers must hold mu.
func (s *Store) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	s.removeEntry(e)
	slog.Info("session evicted at capacity", "session_id", e.session.id)
}

// removeEntry removes an entry from both indexes. Callers must hold mu.
func (s *Store) removeEntry(e *entry) {
	s.order.Remove(e.element)
	delete(s.items, e.session.id)
}

// sweepLoop periodically reclaims expired sessions. Lazy expiry on access is
// the source of truth; this loop is bookkeeping only.
func (s *Store) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if reaped := s.sweep(); reaped > 0 {
				slog.Info("expired sessions reaped", "count", reaped)
			}
		}
	}
}

// sweep removes all expired sessions and returns how many were removed.
func (s *Store) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var stale []*entry
	for _, e := range s.items {
		if now.Sub(e.session.lastActive) > s.cfg.TTL {
			stale = append(stale, e)
		}
	}
	for _, e := range stale {
		s.removeEntry(e)
	}
	return len(stale)
}

func snapshot(state *sessionState) Info {
	return Info{
		SessionID:    state.id,
		CreatedAt:    state.createdAt,
		LastActive:   state.lastActive,
		MessageCount: state.rounds,
		Language:     state.language,
	}
}
