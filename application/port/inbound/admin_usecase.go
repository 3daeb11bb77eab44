package inbound

import (
	"context"
	"time"

	"github.com/fixora/tollgate/domain/entity"
	"github.com/fixora/tollgate/domain/state"
)

// AdminCredential carries whatever the caller presented: the shared admin
// key, a session token, or both.
type AdminCredential struct {
	Key   string
	Token string
}

type AdminAction string

const (
	ActionApprove AdminAction = "approve"
	ActionDeny    AdminAction = "deny"
)

type DecideResult struct {
	HoldID   string                    `json:"hold_id"`
	Outcome  entity.Outcome            `json:"outcome"`
	Transfer entity.PendingTransfer    `json:"transfer"`
	AuditSeq uint64                    `json:"audit_seq"`
	Finished *entity.CompletedTransfer `json:"completed,omitempty"`
}

type ResetResult struct {
	Locked       bool   `json:"locked"`
	PendingCount int    `json:"pending_count"`
	AuditSeq     uint64 `json:"audit_seq"`
}

type AuditVerification struct {
	Valid   bool   `json:"valid"`
	Records int    `json:"records"`
	Head    string `json:"head"`
	Problem string `json:"problem,omitempty"`
}

type StatusResponse struct {
	State        state.Snapshot `json:"state"`
	AuditRecords int            `json:"audit_records"`
	AuditHead    string         `json:"audit_head"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdminUseCase is the admin recovery workflow. Every method checks the
// credential first and fails with an unauthorized error, without touching
// state, when it does not match.
type AdminUseCase interface {
	ListPending(ctx context.Context, cred AdminCredential) ([]entity.PendingTransfer, error)
	Decide(ctx context.Context, cred AdminCredential, holdID string, action AdminAction) (*DecideResult, error)
	Reset(ctx context.Context, cred AdminCredential) (*ResetResult, error)
	AuditLog(ctx context.Context, cred AdminCredential) ([]entity.AuditRecord, error)
	VerifyAudit(ctx context.Context, cred AdminCredential) (*AuditVerification, error)
	Status(ctx context.Context, cred AdminCredential) (*StatusResponse, error)
	OpenSession(ctx context.Context, cred AdminCredential) (*SessionResponse, error)
	// Authorize only checks the credential, for routes that are not use case
	// calls themselves.
	Authorize(ctx context.Context, cred AdminCredential) error
}
