// Package state holds the process-wide security state the policy pipeline and
// the admin recovery workflow read and mutate: the lockdown flag, per-user
// strike counters, per-user recent amounts and the queue of held transfers.
//
// A single mutex guards everything. Each exported Store method is one
// indivisible operation; Atomically runs a caller's read-modify-write
// sequence as one critical section.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fixora/tollgate/domain/entity"
)

const (
	DefaultHistorySize  = 3
	DefaultMaxCompleted = 256
)

var ErrPendingNotFound = errors.New("pending transfer not found")

// Snapshot is a read-only copy of the state at one instant.
type Snapshot struct {
	Locked         bool           `json:"locked"`
	Strikes        map[string]int `json:"strikes"`
	PendingCount   int            `json:"pending_count"`
	CompletedCount int            `json:"completed_count"`
	DailyLimit     string         `json:"daily_limit"`
}

type Store struct {
	mu           sync.Mutex
	locked       bool
	strikes      map[string]int
	history      map[string][]decimal.Decimal
	pending      []entity.PendingTransfer
	completed    []entity.CompletedTransfer
	dailyLimit   decimal.Decimal
	historySize  int
	maxCompleted int
	newID        func() string
	now          func() time.Time
}

// Option configures a Store.
type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

func WithHistorySize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.historySize = n
		}
	}
}

// WithMaxCompleted bounds how many approved holds are remembered.
func WithMaxCompleted(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxCompleted = n
		}
	}
}

// NewStore creates the state in its initial ACTIVE form: not locked, no
// strikes, no history, nothing pending.
func NewStore(dailyLimit decimal.Decimal, opts ...Option) *Store {
	s := &Store{
		strikes:      make(map[string]int),
		history:      make(map[string][]decimal.Decimal),
		pending:      make([]entity.PendingTransfer, 0),
		completed:    make([]entity.CompletedTransfer, 0),
		dailyLimit:   dailyLimit,
		historySize:  DefaultHistorySize,
		maxCompleted: DefaultMaxCompleted,
		newID:        uuid.NewString,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Atomically runs fn with the store lock held. The Tx must not escape fn.
func (s *Store) Atomically(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

func (s *Store) IsLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

func (s *Store) SetLocked(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = locked
}

// DailyLimit is fixed for the life of the store.
func (s *Store) DailyLimit() decimal.Decimal {
	return s.dailyLimit
}

func (s *Store) RecordAmount(user string, amount decimal.Decimal) []decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&Tx{s: s}).RecordAmount(user, amount)
}

func (s *Store) History(user string) []decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&Tx{s: s}).History(user)
}

func (s *Store) IncrementStrike(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&Tx{s: s}).IncrementStrike(user)
}

func (s *Store) ResetStrike(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.strikes, user)
}

func (s *Store) Strikes(user string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strikes[user]
}

func (s *Store) EnqueuePending(req entity.TransferRequest) entity.PendingTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&Tx{s: s}).EnqueuePending(req)
}

func (s *Store) ListPending() []entity.PendingTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&Tx{s: s}).ListPending()
}

func (s *Store) RemovePending(holdID string) (entity.PendingTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&Tx{s: s}).RemovePending(holdID)
}

// ResetAll clears lockdown and every strike counter. History, the pending
// queue and completed transfers are kept.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	(&Tx{s: s}).ResetAll()
}

func (s *Store) Completed() []entity.CompletedTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.CompletedTransfer, len(s.completed))
	copy(out, s.completed)
	return out
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	strikes := make(map[string]int, len(s.strikes))
	for user, n := range s.strikes {
		strikes[user] = n
	}
	return Snapshot{
		Locked:         s.locked,
		Strikes:        strikes,
		PendingCount:   len(s.pending),
		CompletedCount: len(s.completed),
		DailyLimit:     s.dailyLimit.String(),
	}
}

// Tx exposes the store primitives to code already holding the store lock.
type Tx struct {
	s *Store
}

func (tx *Tx) IsLocked() bool { return tx.s.locked }

func (tx *Tx) SetLocked(locked bool) { tx.s.locked = locked }

func (tx *Tx) DailyLimit() decimal.Decimal { return tx.s.dailyLimit }

func (tx *Tx) Now() time.Time { return tx.s.now() }

// RecordAmount appends amount to the user's history, trims it to the
// configured size and returns a copy of what remains.
func (tx *Tx) RecordAmount(user string, amount decimal.Decimal) []decimal.Decimal {
	h := append(tx.s.history[user], amount)
	if over := len(h) - tx.s.historySize; over > 0 {
		h = append([]decimal.Decimal(nil), h[over:]...)
	}
	tx.s.history[user] = h
	return append([]decimal.Decimal(nil), h...)
}

func (tx *Tx) History(user string) []decimal.Decimal {
	return append([]decimal.Decimal(nil), tx.s.history[user]...)
}

func (tx *Tx) IncrementStrike(user string) int {
	tx.s.strikes[user]++
	return tx.s.strikes[user]
}

func (tx *Tx) ResetStrike(user string) { delete(tx.s.strikes, user) }

// Strikes returns 0 for users that never failed.
func (tx *Tx) Strikes(user string) int { return tx.s.strikes[user] }

func (tx *Tx) EnqueuePending(req entity.TransferRequest) entity.PendingTransfer {
	p := entity.PendingTransfer{
		HoldID:      tx.s.newID(),
		Request:     req,
		SubmittedAt: tx.s.now().UTC(),
	}
	tx.s.pending = append(tx.s.pending, p)
	return p
}

func (tx *Tx) ListPending() []entity.PendingTransfer {
	out := make([]entity.PendingTransfer, len(tx.s.pending))
	copy(out, tx.s.pending)
	return out
}

func (tx *Tx) RemovePending(holdID string) (entity.PendingTransfer, error) {
	for i, p := range tx.s.pending {
		if p.HoldID == holdID {
			tx.s.pending = append(tx.s.pending[:i:i], tx.s.pending[i+1:]...)
			return p, nil
		}
	}
	return entity.PendingTransfer{}, ErrPendingNotFound
}

// RecordCompleted keeps the most recent approvals, oldest dropped first.
func (tx *Tx) RecordCompleted(c entity.CompletedTransfer) {
	tx.s.completed = append(tx.s.completed, c)
	if over := len(tx.s.completed) - tx.s.maxCompleted; over > 0 {
		tx.s.completed = append([]entity.CompletedTransfer(nil), tx.s.completed[over:]...)
	}
}

func (tx *Tx) ResetAll() {
	tx.s.locked = false
	tx.s.strikes = make(map[string]int)
}
