package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/fixora/tollgate/application/port/outbound"
	"github.com/fixora/tollgate/domain/entity"
	domainerr "github.com/fixora/tollgate/domain/error"
	"github.com/fixora/tollgate/domain/state"
)

// evaluation is the per-request scratch space shared by the layers. It only
// lives inside the store's critical section.
type evaluation struct {
	ctx    context.Context
	tx     *state.Tx
	req    entity.TransferRequest
	policy Policy
	users  outbound.UserRegistry
	user   *entity.User
}

// verdict is a terminal result of one layer.
type verdict struct {
	decision entity.Decision
	event    entity.EventKind
	lock     bool
	detail   string
}

func (v verdict) status() string {
	switch {
	case v.lock:
		return entity.StatusLockdown
	case v.decision.IsApproved():
		return entity.StatusApproved
	case v.decision.IsHeld():
		return entity.StatusHeld
	default:
		return entity.StatusRejected
	}
}

// layer returns a verdict to stop evaluation, or nil to pass the request on.
type layer struct {
	name  string
	check func(e *evaluation) *verdict
}

func defaultLayers() []layer {
	return []layer{
		{name: "lockdown_gate", check: checkLockdown},
		{name: "identity", check: checkIdentity},
		{name: "injection_sentinel", check: checkInjection},
		{name: "structuring", check: checkStructuring},
		{name: "credential", check: checkCredential},
		{name: "urgency", check: checkUrgency},
		{name: "value_limit", check: checkValueLimit},
	}
}

func reject(kind domainerr.ErrorCode, event entity.EventKind, reason string) *verdict {
	return &verdict{decision: entity.Rejected(kind, reason), event: event}
}

func checkLockdown(e *evaluation) *verdict {
	if !e.tx.IsLocked() {
		return nil
	}
	return reject(domainerr.ErrCodeLockdown, entity.EventSystemLocked, "system locked")
}

func checkIdentity(e *evaluation) *verdict {
	user, err := e.users.FindByID(e.ctx, e.req.ClientID)
	if err != nil || user == nil {
		// Lookup failures fail closed.
		v := reject(domainerr.ErrCodeIdentityUnknown, entity.EventIdentityUnknown, "identity unknown")
		if err != nil && !errors.Is(err, outbound.ErrUserNotFound) {
			v.detail = err.Error()
		}
		return v
	}
	e.user = user
	return nil
}

func checkInjection(e *evaluation) *verdict {
	phrase, ok := e.policy.MatchDenylist(e.req.Memo)
	if !ok {
		return nil
	}
	v := reject(domainerr.ErrCodeInjectionDetected, entity.EventInjectionDetected,
		"injection detected: manipulation phrase in memo, system locked")
	v.lock = true
	v.detail = phrase
	return v
}

// checkUrgency only refuses transfers that would otherwise be approved;
// over-limit amounts go on to be held for review.
func checkUrgency(e *evaluation) *verdict {
	if e.policy.ExceedsLimit(e.req.Amount) || !e.policy.IsUrgentHighValue(e.req.Amount, e.req.Memo) {
		return nil
	}
	return reject(domainerr.ErrCodeUrgencyDetected, entity.EventUrgencyDetected,
		"high-value urgency detected")
}

func checkStructuring(e *evaluation) *verdict {
	recent := e.tx.RecordAmount(e.req.ClientID, e.req.Amount)
	window := e.policy.StructuringWindow
	if len(recent) < window {
		return nil
	}
	for _, amount := range recent[len(recent)-window:] {
		if !e.policy.InStructuringBand(amount) {
			return nil
		}
	}
	v := reject(domainerr.ErrCodePatternDetected, entity.EventPatternDetected,
		fmt.Sprintf("structuring pattern detected: %d consecutive amounts just under the limit, system locked", window))
	v.lock = true
	return v
}

func checkCredential(e *evaluation) *verdict {
	if !e.user.RequiresCredential() {
		return nil
	}
	if e.user.CredentialMatches(e.req.Memo) {
		e.tx.ResetStrike(e.user.ID)
		return nil
	}

	strike := e.tx.IncrementStrike(e.user.ID)
	limit := e.policy.MaxStrikes
	var v *verdict
	if strike >= limit {
		v = reject(domainerr.ErrCodeMaximumBreach, entity.EventMaximumBreach,
			fmt.Sprintf("maximum breach: %d/%d credential failures, system locked", strike, limit))
		v.lock = true
	} else {
		v = reject(domainerr.ErrCodeCredentialMismatch, entity.EventCredentialMismatch,
			fmt.Sprintf("credential mismatch: strike %d/%d", strike, limit))
	}
	v.decision.Strike = strike
	v.decision.MaxStrikes = limit
	return v
}

func checkValueLimit(e *evaluation) *verdict {
	if !e.policy.ExceedsLimit(e.req.Amount) {
		return &verdict{
			decision: entity.Approved("transfer approved"),
			event:    entity.EventTransferApproved,
		}
	}
	held := e.tx.EnqueuePending(e.req)
	return &verdict{
		decision: entity.Held(held.HoldID, "amount exceeds daily limit, held for admin review"),
		event:    entity.EventTransferHeld,
		detail:   held.HoldID,
	}
}
