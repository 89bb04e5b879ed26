// Package memory keeps bounded, expiring per-user conversation history and
// condenses overflowing history into a summary instead of discarding it.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/tipsai/internal/chat"
	"github.com/edgard/tipsai/internal/logger"
)

const (
	DefaultMaxHistory = 20
	DefaultTTL        = 30 * time.Minute

	// SummaryPrefix marks the synthetic turn that replaces condensed history.
	SummaryPrefix = "[Resumo da conversa anterior] "
)

// ErrEmptySummary is returned when a condenser produces no usable text.
var ErrEmptySummary = errors.New("condenser returned an empty summary")

// Condenser summarizes a run of conversation turns into a short text.
type Condenser interface {
	Condense(ctx context.Context, turns []chat.Turn) (string, error)
}

// CondenserFunc adapts a function to the Condenser interface.
type CondenserFunc func(ctx context.Context, turns []chat.Turn) (string, error)

// Condense calls f.
func (f CondenserFunc) Condense(ctx context.Context, turns []chat.Turn) (string, error) {
	return f(ctx, turns)
}

// Options configures a Memory.
type Options struct {
	MaxHistory int
	TTL        time.Duration
	// Condense enables summarization of the older half on overflow.
	// When false, or when Condenser is nil, overflow drops the oldest turns.
	Condense  bool
	Condenser Condenser
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

type entry struct {
	turns      []chat.Turn
	lastActive time.Time
	version    uint64
	condensing bool
	// pinned is the length of the prefix handed to the running condensation.
	pinned int
}

// Memory stores conversation turns per Telegram user ID. It is safe for
// concurrent use. The lock is never held across a condenser call.
type Memory struct {
	maxHistory int
	ttl        time.Duration
	condense   bool
	condenser  Condenser
	clock      clockwork.Clock
	log        *slog.Logger

	mu      sync.Mutex
	entries map[int64]*entry
}

// New creates a Memory, filling unset options with defaults.
func New(opts Options) *Memory {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Memory{
		maxHistory: opts.MaxHistory,
		ttl:        opts.TTL,
		condense:   opts.Condense && opts.Condenser != nil,
		condenser:  opts.Condenser,
		clock:      opts.Clock,
		log:        opts.Logger.With("component", "memory"),
		entries:    make(map[int64]*entry),
	}
}

// Append records a turn for userID and resets its inactivity clock.
// Overflow is resolved before Append returns.
func (m *Memory) Append(ctx context.Context, userID int64, role chat.Role, text string) {
	m.mu.Lock()
	now := m.clock.Now()
	m.expire(userID, now)

	e, ok := m.entries[userID]
	if !ok {
		e = &entry{}
		m.entries[userID] = e
	}
	e.turns = append(e.turns, chat.Turn{Role: role, Text: text})
	e.lastActive = now
	e.version++

	if len(e.turns) <= m.maxHistory {
		m.mu.Unlock()
		return
	}
	if !m.condense {
		m.truncate(e)
		m.mu.Unlock()
		return
	}
	if e.condensing {
		// The pinned prefix stays for the in-flight condensation to replace.
		m.trimSuffix(e, e.pinned)
		m.mu.Unlock()
		return
	}

	mid := len(e.turns) / 2
	older := make([]chat.Turn, mid)
	copy(older, e.turns[:mid])
	version := e.version
	e.condensing = true
	e.pinned = mid
	m.mu.Unlock()

	summary, err := m.condenser.Condense(ctx, older)
	summary = strings.TrimSpace(summary)
	if err == nil && summary == "" {
		err = ErrEmptySummary
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.entries[userID]; !ok || current != e {
		m.log.DebugContext(ctx, "History cleared during condensation, discarding summary", "user_id", userID)
		return
	}
	e.condensing = false
	e.pinned = 0

	if err != nil {
		m.log.WarnContext(ctx, "Memory condensation failed, falling back to truncation", "user_id", userID, "error", err)
		m.truncate(e)
		return
	}

	if e.version != version && !hasPrefix(e.turns, older) {
		m.log.DebugContext(ctx, "History changed during condensation, falling back to truncation", "user_id", userID)
		m.truncate(e)
		return
	}

	// The summary takes slot 0 and the newest turns fill the rest.
	rest := e.turns[mid:]
	if keep := m.maxHistory - 1; len(rest) > keep {
		rest = rest[len(rest)-keep:]
	}
	condensed := make([]chat.Turn, 0, len(rest)+1)
	condensed = append(condensed, chat.Turn{Role: chat.RoleAssistant, Text: SummaryPrefix + summary})
	condensed = append(condensed, rest...)
	e.turns = condensed

	m.log.InfoContext(ctx, "Condensed conversation history", "user_id", userID, "condensed", mid, "remaining", len(e.turns))
}

// History returns a copy of the user's turns, oldest first. Expired or
// unknown users get an empty history.
func (m *Memory) History(userID int64) []chat.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expire(userID, m.clock.Now())
	e, ok := m.entries[userID]
	if !ok {
		return nil
	}

	turns := e.turns
	if len(turns) > m.maxHistory {
		turns = turns[len(turns)-m.maxHistory:]
	}
	out := make([]chat.Turn, len(turns))
	copy(out, turns)
	return out
}

// Clear drops all history for userID.
func (m *Memory) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
}

// Users returns the number of users with live history.
func (m *Memory) Users() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for userID := range m.entries {
		m.expire(userID, now)
	}
	return len(m.entries)
}

// expire removes the user's entry if it has been idle longer than the TTL.
// Caller holds m.mu.
func (m *Memory) expire(userID int64, now time.Time) {
	e, ok := m.entries[userID]
	if ok && now.Sub(e.lastActive) > m.ttl {
		delete(m.entries, userID)
	}
}

// truncate keeps only the newest maxHistory turns. Caller holds m.mu.
func (m *Memory) truncate(e *entry) {
	if len(e.turns) > m.maxHistory {
		e.turns = append([]chat.Turn(nil), e.turns[len(e.turns)-m.maxHistory:]...)
	}
}

// trimSuffix keeps the first n turns and at most maxHistory-1 turns after
// them. Caller holds m.mu.
func (m *Memory) trimSuffix(e *entry, n int) {
	keep := n + max(m.maxHistory-1, 0)
	if len(e.turns) > keep {
		trimmed := make([]chat.Turn, 0, keep)
		trimmed = append(trimmed, e.turns[:n]...)
		trimmed = append(trimmed, e.turns[len(e.turns)-(keep-n):]...)
		e.turns = trimmed
	}
}

func hasPrefix(turns, prefix []chat.Turn) bool {
	if len(turns) < len(prefix) {
		return false
	}
	for i := range prefix {
		if turns[i] != prefix[i] {
			return false
		}
	}
	return true
}
