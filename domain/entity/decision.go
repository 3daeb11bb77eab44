package entity

import (
	"net/http"

	domainerr "github.com/fixora/tollgate/domain/error"
)

// Outcome is the terminal result of evaluating a transfer request.
type Outcome string

const (
	OutcomeApproved Outcome = "APPROVED"
	OutcomeHeld     Outcome = "HELD"
	OutcomeRejected Outcome = "REJECTED"
)

// Decision is what the policy pipeline returns for every request. Rejections
// are values, not errors.
type Decision struct {
	Outcome    Outcome             `json:"outcome"`
	Kind       domainerr.ErrorCode `json:"kind,omitempty"`
	Reason     string              `json:"reason"`
	HTTPStatus int                 `json:"-"`
	HoldID     string              `json:"hold_id,omitempty"`
	Strike     int                 `json:"strike,omitempty"`
	MaxStrikes int                 `json:"max_strikes,omitempty"`
	Lockdown   bool                `json:"lockdown_triggered,omitempty"`
	AuditSeq   uint64              `json:"audit_seq"`
}

func Approved(reason string) Decision {
	return Decision{Outcome: OutcomeApproved, Reason: reason, HTTPStatus: http.StatusOK}
}

func Held(holdID, reason string) Decision {
	return Decision{
		Outcome:    OutcomeHeld,
		Kind:       domainerr.ErrCodeLimitHeld,
		Reason:     reason,
		HTTPStatus: domainerr.StatusForCode(domainerr.ErrCodeLimitHeld),
		HoldID:     holdID,
	}
}

func Rejected(kind domainerr.ErrorCode, reason string) Decision {
	return Decision{
		Outcome:    OutcomeRejected,
		Kind:       kind,
		Reason:     reason,
		HTTPStatus: domainerr.StatusForCode(kind),
	}
}

func (d Decision) IsApproved() bool { return d.Outcome == OutcomeApproved }

func (d Decision) IsHeld() bool { return d.Outcome == OutcomeHeld }

func (d Decision) IsRejected() bool { return d.Outcome == OutcomeRejected }
