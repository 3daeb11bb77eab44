// Package ledger keeps the append-only, hash-chained audit trail of every
// gateway decision and admin action.
//
// Each record's digest is SHA-256 over its length-prefixed timestamp, user,
// event kind, status and the previous record's digest; the first record
// chains from Genesis.
// Recomputing the chain from Genesis must reproduce every stored digest,
// otherwise the ledger has been tampered with.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fixora/tollgate/domain/entity"
)

// Genesis is the anchor the first record chains from.
var Genesis = strings.Repeat("0", sha256.Size*2)

var (
	ErrSealed        = errors.New("audit ledger is sealed")
	ErrEmptyUser     = errors.New("audit user cannot be empty")
	ErrEmptyKind     = errors.New("audit event kind cannot be empty")
	ErrEmptyStatus   = errors.New("audit status cannot be empty")
	ErrChainMismatch = errors.New("audit chain mismatch")
)

// Observer receives every record after it has been chained, in chain order.
// The ledger calls observers while holding its write lock: implementations
// must not block and must not call back into the ledger.
type Observer interface {
	OnAudit(record entity.AuditRecord)
}

// Ledger is safe for concurrent use. Appends are strictly sequential.
type Ledger struct {
	mu        sync.RWMutex
	records   []entity.AuditRecord
	anchor    string
	sealed    bool
	now       func() time.Time
	observers []Observer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithObserver registers o to be notified of every appended record.
func WithObserver(o Observer) Option {
	return func(l *Ledger) {
		if o != nil {
			l.observers = append(l.observers, o)
		}
	}
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		records: make([]entity.AuditRecord, 0, 64),
		anchor:  Genesis,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append chains a new record onto the ledger and returns it.
func (l *Ledger) Append(user string, kind entity.EventKind, status string) (entity.AuditRecord, error) {
	switch {
	case strings.TrimSpace(user) == "":
		return entity.AuditRecord{}, ErrEmptyUser
	case kind == "":
		return entity.AuditRecord{}, ErrEmptyKind
	case status == "":
		return entity.AuditRecord{}, ErrEmptyStatus
	}

	l.mu.Lock()
	if l.sealed {
		l.mu.Unlock()
		return entity.AuditRecord{}, ErrSealed
	}
	record := entity.AuditRecord{
		Seq:        uint64(len(l.records)) + 1,
		Timestamp:  l.now().UTC(),
		User:       user,
		EventKind:  kind,
		Status:     status,
		PrevDigest: l.anchor,
	}
	record.Digest = Digest(record.Timestamp, record.User, record.EventKind, record.Status, record.PrevDigest)
	l.records = append(l.records, record)
	l.anchor = record.Digest
	for _, o := range l.observers {
		o.OnAudit(record)
	}
	l.mu.Unlock()
	return record, nil
}

// Records returns a copy of the ledger in append order.
func (l *Ledger) Records() []entity.AuditRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]entity.AuditRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records appended so far.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Head returns the digest of the latest record, or Genesis when empty.
func (l *Ledger) Head() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.anchor
}

// Verify recomputes the chain from Genesis. It returns nil when every stored
// digest is reproduced, otherwise an error wrapping ErrChainMismatch that
// names the first broken sequence number.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return VerifyChain(l.records)
}

// Intact reports whether Verify succeeds.
func (l *Ledger) Intact() bool {
	return l.Verify() == nil
}

// Seal stops further appends. Used during shutdown.
func (l *Ledger) Seal() {
	l.mu.Lock()
	l.sealed = true
	l.mu.Unlock()
}

// VerifyChain checks records as an independent chain starting at Genesis.
func VerifyChain(records []entity.AuditRecord) error {
	prev := Genesis
	for i, r := range records {
		if r.Seq != uint64(i)+1 {
			return fmt.Errorf("%w: seq %d out of order at position %d", ErrChainMismatch, r.Seq, i+1)
		}
		if r.PrevDigest != prev {
			return fmt.Errorf("%w: seq %d does not link to its predecessor", ErrChainMismatch, r.Seq)
		}
		if want := Digest(r.Timestamp, r.User, r.EventKind, r.Status, prev); r.Digest != want {
			return fmt.Errorf("%w: seq %d digest does not match its contents", ErrChainMismatch, r.Seq)
		}
		prev = r.Digest
	}
	return nil
}

// Digest computes the chained digest of a record. Each field is length
// prefixed, so no field content can shift bytes into its neighbour.
func Digest(ts time.Time, user string, kind entity.EventKind, status, prev string) string {
	h := sha256.New()
	for _, field := range []string{ts.UTC().Format(time.RFC3339Nano), user, string(kind), status, prev} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	return hex.EncodeToString(h.Sum(nil))
}
