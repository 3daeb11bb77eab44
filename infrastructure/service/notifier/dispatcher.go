// Package notifier delivers audit records to slow consumers (dashboard
// streams, metrics, log sinks) without holding up the ledger. The ledger
// calls OnAudit under its write lock, so OnAudit only enqueues.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fixora/tollgate/application/port/outbound"
	"github.com/fixora/tollgate/domain/entity"
	"github.com/fixora/tollgate/infrastructure/service/logger"
)

const DefaultBufferSize = 256

type Dispatcher struct {
	queue     chan entity.AuditRecord
	observers []outbound.AuditObserver
	logger    logger.Logger
	dropped   atomic.Uint64
	delivered atomic.Uint64
	done      chan struct{}
	startOnce sync.Once
}

// NewDispatcher creates a dispatcher fanning out to observers in the order
// given. Nil observers are skipped.
func NewDispatcher(bufferSize int, log logger.Logger, observers ...outbound.AuditObserver) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	d := &Dispatcher{
		queue:  make(chan entity.AuditRecord, bufferSize),
		logger: log.WithFields(map[string]interface{}{"component": "audit_dispatcher"}),
		done:   make(chan struct{}),
	}
	for _, o := range observers {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
	return d
}

// OnAudit queues r for delivery. When the buffer is full the record is
// dropped and counted; the ledger itself still holds it.
func (d *Dispatcher) OnAudit(r entity.AuditRecord) {
	select {
	case d.queue <- r:
	default:
		n := d.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			d.logger.Warn(context.Background(), "Audit notification dropped, dispatcher buffer full", map[string]interface{}{
				"seq":           r.Seq,
				"dropped_total": n,
			})
		}
	}
}

// Start runs the delivery loop until ctx is cancelled, then drains what is
// already queued. Calling Start more than once has no effect.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

// Done is closed once the delivery loop has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case r := <-d.queue:
			d.deliver(r)
		case <-ctx.Done():
			for {
				select {
				case r := <-d.queue:
					d.deliver(r)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(r entity.AuditRecord) {
	for _, o := range d.observers {
		d.safeNotify(o, r)
	}
	d.delivered.Add(1)
}

func (d *Dispatcher) safeNotify(o outbound.AuditObserver, r entity.AuditRecord) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error(context.Background(), "Audit observer panicked", fmt.Errorf("%v", p), map[string]interface{}{
				"seq":      r.Seq,
				"observer": fmt.Sprintf("%T", o),
			})
		}
	}()
	o.OnAudit(r)
}

// LogObserver writes one structured line per audit record.
type LogObserver struct {
	logger logger.Logger
}

func NewLogObserver(log logger.Logger) *LogObserver {
	return &LogObserver{logger: log.WithFields(map[string]interface{}{"component": "audit_log"})}
}

func (o *LogObserver) OnAudit(r entity.AuditRecord) {
	o.logger.Info(context.Background(), "Audit record appended", map[string]interface{}{
		"seq":        r.Seq,
		"user":       r.User,
		"event_kind": string(r.EventKind),
		"status":     r.Status,
		"digest":     r.Digest,
	})
}
