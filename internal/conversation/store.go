// Package conversation holds the process-wide store of multi-turn threads
// shared across tools, plus the token-budgeted history builder and the
// file-content preparer layered on top of it.
//
// Threads live only in memory: their lifetime is bounded by a TTL measured
// from the last update, and nothing survives a process restart. Parent links
// let a tool continue a conversation started by another tool; reconstruction
// follows the chain with a visited set so a malformed link can never loop.
//
// All exported types are safe for concurrent use.
package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one user or assistant entry in a thread.
type Turn struct {
	// Role is who authored the turn.
	Role Role

	// Content is the turn's text.
	Content string

	// Timestamp is when the turn was appended.
	Timestamp time.Time

	// Files lists absolute paths referenced by this turn.
	Files []string

	// Images lists absolute paths or data URLs attached to this turn.
	Images []string

	// ToolName records which tool produced the turn.
	ToolName string

	// ProviderKind and ModelName record which backend generated an assistant
	// turn. Empty for user turns.
	ProviderKind string
	ModelName    string

	// ModelMetadata carries step indices and other tool-specific extras.
	ModelMetadata map[string]any
}

// Thread is one conversation context. Turns are append-only; the containing
// [Store] serialises appends with a per-thread mutex.
type Thread struct {
	// ID is the thread's v4 UUID.
	ID string

	// ParentID links to the thread this one continues, or "" for a root.
	ParentID string

	// CreatedAt is when the thread was created.
	CreatedAt time.Time

	// ToolName is the tool that created the thread.
	ToolName string

	// InitialContext preserves the request fields of the creating call.
	InitialContext map[string]any

	mu          sync.Mutex
	lastUpdated time.Time
	turns       []Turn
}

// Turns returns a copy of the thread's turns in append order.
func (t *Thread) Turns() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// LastUpdated returns the time of the most recent append (or creation).
func (t *Thread) LastUpdated() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUpdated
}

// TurnCount returns the number of turns recorded so far.
func (t *Thread) TurnCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns)
}

// StoreConfig tunes a [Store].
type StoreConfig struct {
	// TTL bounds a thread's lifetime measured from its last update.
	// Default: 3h.
	TTL time.Duration

	// MaxTurns caps the turns per thread. Appends beyond the cap fail
	// non-fatally. Default: 50.
	MaxTurns int

	// ThreadGauge, when non-nil, tracks the live thread count.
	ThreadGauge metric.Int64UpDownCounter
}

// Store is the in-memory thread table. The global map is guarded by an
// RWMutex held only for map access, never across I/O; turn appends are
// serialised per thread.
type Store struct {
	ttl      time.Duration
	maxTurns int
	gauge    metric.Int64UpDownCounter
	now      func() time.Time

	mu      sync.RWMutex
	threads map[string]*Thread
	hooks   []func(threadID string)
}

// NewStore creates a Store. Zero-value config fields get defaults.
func NewStore(cfg StoreConfig) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = 3 * time.Hour
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 50
	}
	return &Store{
		ttl:      cfg.TTL,
		maxTurns: cfg.MaxTurns,
		gauge:    cfg.ThreadGauge,
		now:      time.Now,
		threads:  make(map[string]*Thread),
	}
}

// OnEvict registers fn to run after a thread is evicted, whether by the
// periodic sweep or lazily on access. Components holding per-thread state
// outside the store use it to drop that state together with the thread.
func (s *Store) OnEvict(fn func(threadID string)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Create starts a new thread and returns its UUID. parentID may name an
// existing thread to continue; an unknown or expired parent is kept as a
// dangling link rather than an error, since the chain walk tolerates it.
func (s *Store) Create(toolName string, initialContext map[string]any, parentID string) string {
	now := s.now()
	t := &Thread{
		ID:             uuid.NewString(),
		ParentID:       parentID,
		CreatedAt:      now,
		ToolName:       toolName,
		InitialContext: initialContext,
		lastUpdated:    now,
	}

	s.mu.Lock()
	s.threads[t.ID] = t
	s.mu.Unlock()

	if s.gauge != nil {
		s.gauge.Add(context.Background(), 1)
	}
	slog.Debug("conversation thread created", "thread_id", t.ID, "tool", toolName, "parent", parentID)
	return t.ID
}

// Get returns the live thread with the given id. Expired threads are evicted
// on access and reported as absent.
func (s *Store) Get(id string) (*Thread, bool) {
	s.mu.RLock()
	t, ok := s.threads[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if s.now().Sub(t.LastUpdated()) > s.ttl {
		s.evict(id)
		return nil, false
	}
	return t, true
}

// AddTurn appends a turn to the thread. It returns false without error when
// the thread is absent, expired, or already at the turn cap; the caller
// proceeds without stored history.
func (s *Store) AddTurn(id string, turn Turn) bool {
	t, ok := s.Get(id)
	if !ok {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.turns) >= s.maxTurns {
		slog.Warn("conversation turn cap reached, dropping turn",
			"thread_id", id, "max_turns", s.maxTurns)
		return false
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	t.turns = append(t.turns, turn)
	t.lastUpdated = s.now()
	return true
}

// RemainingTurns reports how many more turns the thread accepts.
func (s *Store) RemainingTurns(id string) int {
	t, ok := s.Get(id)
	if !ok {
		return 0
	}
	if n := s.maxTurns - t.TurnCount(); n > 0 {
		return n
	}
	return 0
}

// Chain returns the thread plus its ancestors ordered root-first. A visited
// set guards against cycles from malformed parent links; dangling parents
// terminate the walk silently.
func (s *Store) Chain(id string) []*Thread {
	var chain []*Thread
	visited := make(map[string]bool)

	for id != "" && !visited[id] {
		visited[id] = true
		t, ok := s.Get(id)
		if !ok {
			break
		}
		chain = append(chain, t)
		id = t.ParentID
	}

	// Walked child→parent; reverse to root-first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// FileList returns the files referenced across the thread's parent chain,
// deduplicated newest-first: each path appears once, attributed to the latest
// turn that mentioned it.
func (s *Store) FileList(id string) []string {
	return s.collectRefs(id, func(t Turn) []string { return t.Files })
}

// ImageList returns the images referenced across the parent chain with the
// same newest-first dedup semantics as [Store.FileList].
func (s *Store) ImageList(id string) []string {
	return s.collectRefs(id, func(t Turn) []string { return t.Images })
}

func (s *Store) collectRefs(id string, refs func(Turn) []string) []string {
	chain := s.Chain(id)

	var out []string
	seen := make(map[string]bool)
	// Newest turn first: walk threads child-first, turns in reverse.
	for i := len(chain) - 1; i >= 0; i-- {
		turns := chain[i].Turns()
		for j := len(turns) - 1; j >= 0; j-- {
			for _, ref := range refs(turns[j]) {
				if !seen[ref] {
					seen[ref] = true
					out = append(out, ref)
				}
			}
		}
	}
	return out
}

// Sweep evicts every expired thread and returns how many were removed.
// Eviction is otherwise lazy; this exists for periodic housekeeping.
func (s *Store) Sweep() int {
	s.mu.RLock()
	var expired []string
	for id, t := range s.threads {
		if s.now().Sub(t.LastUpdated()) > s.ttl {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range expired {
		s.evict(id)
	}
	return len(expired)
}

// Len reports the number of stored threads, including not-yet-evicted
// expired ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

func (s *Store) evict(id string) {
	s.mu.Lock()
	_, present := s.threads[id]
	delete(s.threads, id)
	hooks := s.hooks
	s.mu.Unlock()

	if present {
		if s.gauge != nil {
			s.gauge.Add(context.Background(), -1)
		}
		slog.Debug("conversation thread expired", "thread_id", id)
		for _, fn := range hooks {
			fn(id)
		}
	}
}
