// Package verification implements the transfer policy pipeline: an ordered
// chain of layers (lockdown gate, identity, injection sentinel, structuring,
// credential, urgency, value limit) evaluated against the shared
// security state. The first layer that returns a verdict ends evaluation.
package verification

import (
	"context"
	"time"

	"github.com/fixora/tollgate/application/port/outbound"
	"github.com/fixora/tollgate/domain/entity"
	domainerr "github.com/fixora/tollgate/domain/error"
	"github.com/fixora/tollgate/domain/ledger"
	"github.com/fixora/tollgate/domain/state"
	"github.com/fixora/tollgate/infrastructure/service/logger"
)

// anonymousActor stands in for requests that carry no client identifier.
const anonymousActor = "anonymous"

type Pipeline struct {
	store  *state.Store
	ledger *ledger.Ledger
	users  outbound.UserRegistry
	policy Policy
	layers []layer
	logger logger.Logger
}

func NewPipeline(
	store *state.Store,
	auditLedger *ledger.Ledger,
	users outbound.UserRegistry,
	policy Policy,
	log logger.Logger,
) (*Pipeline, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if !store.DailyLimit().Equal(policy.DailyLimit) {
		return nil, ErrInvalidDailyLimit
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Pipeline{
		store:  store,
		ledger: auditLedger,
		users:  users,
		policy: policy,
		layers: defaultLayers(),
		logger: log.WithFields(map[string]interface{}{"component": "policy_pipeline"}),
	}, nil
}

// Verify evaluates req and returns the terminal decision. State mutations and
// the audit append happen in one critical section, so the next request sees
// any lockdown this one triggered. The only error is a failed audit append.
func (p *Pipeline) Verify(ctx context.Context, req entity.TransferRequest) (entity.Decision, error) {
	start := time.Now()
	actor := req.ClientID
	if actor == "" {
		actor = anonymousActor
	}

	var (
		v         *verdict
		layerName string
	)
	err := p.store.Atomically(func(tx *state.Tx) error {
		e := &evaluation{ctx: ctx, tx: tx, req: req, policy: p.policy, users: p.users}
		for _, l := range p.layers {
			if v = l.check(e); v != nil {
				layerName = l.name
				break
			}
		}
		if v.lock {
			tx.SetLocked(true)
			v.decision.Lockdown = true
		}

		record, err := p.ledger.Append(actor, v.event, v.status())
		if err != nil {
			return err
		}
		v.decision.AuditSeq = record.Seq
		return nil
	})
	if err != nil {
		p.logger.Error(ctx, "Audit append failed, refusing to answer", err, map[string]interface{}{
			"client_id": actor,
		})
		return entity.Decision{}, domainerr.ErrAuditFailure(err)
	}

	p.logDecision(ctx, actor, layerName, v, time.Since(start))
	return v.decision, nil
}

// Policy returns the thresholds the pipeline was built with.
func (p *Pipeline) Policy() Policy {
	return p.policy
}

func (p *Pipeline) logDecision(ctx context.Context, actor, layerName string, v *verdict, took time.Duration) {
	fields := map[string]interface{}{
		"client_id": actor,
		"layer":     layerName,
		"outcome":   string(v.decision.Outcome),
		"audit_seq": v.decision.AuditSeq,
		"took_ms":   took.Milliseconds(),
	}
	if v.decision.Kind != "" {
		fields["kind"] = string(v.decision.Kind)
	}
	if v.detail != "" {
		fields["detail"] = v.detail
	}

	switch {
	case v.lock:
		logger.LogSecurityEvent(ctx, p.logger, string(v.event), "HIGH", fields)
	case v.decision.IsRejected():
		logger.LogSecurityEvent(ctx, p.logger, string(v.event), "MEDIUM", fields)
	case v.decision.IsHeld():
		fields["hold_id"] = v.decision.HoldID
		p.logger.Info(ctx, "Transfer held for review", fields)
	default:
		p.logger.Debug(ctx, "Transfer approved", fields)
	}

	logger.LogPerformance(ctx, p.logger, "verify_transfer", took, map[string]interface{}{
		"layer":   layerName,
		"outcome": string(v.decision.Outcome),
	})
}
