// Package recovery implements the admin side of the gateway: reviewing and
// resolving held transfers, lifting a lockdown and inspecting the audit
// ledger. Every operation is gated by the admin credential.
package recovery

import (
	"context"
	"errors"

	"github.com/fixora/tollgate/application/port/inbound"
	"github.com/fixora/tollgate/application/port/outbound"
	"github.com/fixora/tollgate/domain/entity"
	domainerr "github.com/fixora/tollgate/domain/error"
	"github.com/fixora/tollgate/domain/ledger"
	"github.com/fixora/tollgate/domain/state"
	"github.com/fixora/tollgate/infrastructure/service/logger"
)

// AdminActor is the audit user for every admin action.
const AdminActor = "admin"

type AdminUseCase struct {
	store      *state.Store
	ledger     *ledger.Ledger
	passwords  outbound.PasswordService
	tokens     outbound.TokenService
	secretHash string
	logger     logger.Logger
}

// NewAdminUseCase wires the recovery workflow. tokens may be nil, in which
// case only the admin key is accepted and sessions cannot be opened.
func NewAdminUseCase(
	store *state.Store,
	auditLedger *ledger.Ledger,
	passwords outbound.PasswordService,
	secretHash string,
	tokens outbound.TokenService,
	log logger.Logger,
) (*AdminUseCase, error) {
	if secretHash == "" {
		return nil, errors.New("admin secret hash is required")
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &AdminUseCase{
		store:      store,
		ledger:     auditLedger,
		passwords:  passwords,
		tokens:     tokens,
		secretHash: secretHash,
		logger:     log.WithFields(map[string]interface{}{"component": "admin_recovery"}),
	}, nil
}

var _ inbound.AdminUseCase = (*AdminUseCase)(nil)

func (uc *AdminUseCase) ListPending(ctx context.Context, cred inbound.AdminCredential) ([]entity.PendingTransfer, error) {
	if err := uc.authorize(ctx, cred, "list_pending"); err != nil {
		return nil, err
	}
	return uc.store.ListPending(), nil
}

func (uc *AdminUseCase) Decide(ctx context.Context, cred inbound.AdminCredential, holdID string, action inbound.AdminAction) (*inbound.DecideResult, error) {
	if err := uc.authorize(ctx, cred, "decide"); err != nil {
		return nil, err
	}

	var event entity.EventKind
	switch action {
	case inbound.ActionApprove:
		event = entity.EventHoldApproved
	case inbound.ActionDeny:
		event = entity.EventHoldDenied
	default:
		return nil, domainerr.ErrInvalidAction(string(action))
	}

	result := &inbound.DecideResult{HoldID: holdID}
	// The audit append comes first so a failed append leaves the hold queued.
	err := uc.store.Atomically(func(tx *state.Tx) error {
		held, ok := findPending(tx, holdID)
		if !ok {
			return domainerr.ErrHoldNotFound(holdID)
		}

		record, err := uc.ledger.Append(AdminActor, event, entity.StatusResolved+":"+holdID)
		if err != nil {
			return domainerr.ErrAuditFailure(err)
		}
		if _, err := tx.RemovePending(holdID); err != nil {
			return err
		}

		result.Transfer = held
		result.AuditSeq = record.Seq
		if action == inbound.ActionApprove {
			done := entity.NewCompletedTransfer(held, AdminActor, tx.Now())
			tx.RecordCompleted(done)
			result.Outcome = entity.OutcomeApproved
			result.Finished = &done
		} else {
			result.Outcome = entity.OutcomeRejected
		}
		return nil
	})
	if err != nil {
		uc.logFailure(ctx, "decide", err, map[string]interface{}{"hold_id": holdID, "action": string(action)})
		return nil, err
	}

	logger.LogAdminEvent(ctx, uc.logger, string(event), AdminActor, true, map[string]interface{}{
		"hold_id":   holdID,
		"client_id": result.Transfer.Request.ClientID,
		"amount":    result.Transfer.Request.Amount.String(),
		"audit_seq": result.AuditSeq,
	})
	return result, nil
}

// Reset clears the lockdown and every strike counter. Held transfers and
// amount histories survive.
func (uc *AdminUseCase) Reset(ctx context.Context, cred inbound.AdminCredential) (*inbound.ResetResult, error) {
	if err := uc.authorize(ctx, cred, "reset"); err != nil {
		return nil, err
	}

	result := &inbound.ResetResult{}
	var wasLocked bool
	err := uc.store.Atomically(func(tx *state.Tx) error {
		record, err := uc.ledger.Append(AdminActor, entity.EventSystemReset, entity.StatusActive)
		if err != nil {
			return domainerr.ErrAuditFailure(err)
		}

		wasLocked = tx.IsLocked()
		tx.ResetAll()
		result.Locked = tx.IsLocked()
		result.PendingCount = len(tx.ListPending())
		result.AuditSeq = record.Seq
		return nil
	})
	if err != nil {
		uc.logFailure(ctx, "reset", err, nil)
		return nil, err
	}

	logger.LogAdminEvent(ctx, uc.logger, string(entity.EventSystemReset), AdminActor, true, map[string]interface{}{
		"was_locked": wasLocked,
		"audit_seq":  result.AuditSeq,
	})
	return result, nil
}

func (uc *AdminUseCase) AuditLog(ctx context.Context, cred inbound.AdminCredential) ([]entity.AuditRecord, error) {
	if err := uc.authorize(ctx, cred, "audit_log"); err != nil {
		return nil, err
	}
	return uc.ledger.Records(), nil
}

// VerifyAudit recomputes the whole chain and reports the first problem found.
func (uc *AdminUseCase) VerifyAudit(ctx context.Context, cred inbound.AdminCredential) (*inbound.AuditVerification, error) {
	if err := uc.authorize(ctx, cred, "audit_verify"); err != nil {
		return nil, err
	}

	records := uc.ledger.Records()
	out := &inbound.AuditVerification{Valid: true, Records: len(records), Head: ledger.Genesis}
	if len(records) > 0 {
		out.Head = records[len(records)-1].Digest
	}
	if err := ledger.VerifyChain(records); err != nil {
		out.Valid = false
		out.Problem = err.Error()
		logger.LogSecurityEvent(ctx, uc.logger, "AUDIT_CHAIN_BROKEN", "HIGH", map[string]interface{}{
			"problem": err.Error(),
		})
	}
	return out, nil
}

func (uc *AdminUseCase) Status(ctx context.Context, cred inbound.AdminCredential) (*inbound.StatusResponse, error) {
	if err := uc.authorize(ctx, cred, "status"); err != nil {
		return nil, err
	}
	return &inbound.StatusResponse{
		State:        uc.store.Snapshot(),
		AuditRecords: uc.ledger.Len(),
		AuditHead:    uc.ledger.Head(),
	}, nil
}

// OpenSession trades the admin key for a short-lived bearer token. A token
// cannot be used to mint another one.
func (uc *AdminUseCase) OpenSession(ctx context.Context, cred inbound.AdminCredential) (*inbound.SessionResponse, error) {
	if uc.tokens == nil {
		return nil, domainerr.ErrConfigurationError("admin sessions disabled")
	}
	if err := uc.authorize(ctx, inbound.AdminCredential{Key: cred.Key}, "open_session"); err != nil {
		return nil, err
	}

	token, expiresAt, err := uc.tokens.GenerateAdminToken(AdminActor)
	if err != nil {
		return nil, domainerr.ErrInternalServerError("failed to issue admin token", err)
	}
	logger.LogAdminEvent(ctx, uc.logger, "SESSION_OPENED", AdminActor, true, map[string]interface{}{
		"expires_at": expiresAt,
	})
	return &inbound.SessionResponse{Token: token, ExpiresAt: expiresAt}, nil
}

func (uc *AdminUseCase) Authorize(ctx context.Context, cred inbound.AdminCredential) error {
	return uc.authorize(ctx, cred, "authorize")
}

// authorize accepts a valid session token or the admin key. Failures are
// logged but never audited and never touch state.
func (uc *AdminUseCase) authorize(ctx context.Context, cred inbound.AdminCredential, operation string) error {
	if cred.Token != "" && uc.tokens != nil {
		claims, err := uc.tokens.ValidateAdminToken(cred.Token)
		if err == nil && claims.Role == AdminActor {
			return nil
		}
	}

	if cred.Key != "" {
		ok, err := uc.passwords.VerifyPassword(cred.Key, uc.secretHash)
		if err != nil {
			uc.logger.Error(ctx, "Admin key verification failed", err, map[string]interface{}{
				"operation": operation,
			})
		}
		if ok {
			return nil
		}
	}

	logger.LogAdminEvent(ctx, uc.logger, operation, AdminActor, false, map[string]interface{}{
		"reason":    "unauthorized",
		"had_key":   cred.Key != "",
		"had_token": cred.Token != "",
	})
	return domainerr.ErrUnauthorized()
}

func findPending(tx *state.Tx, holdID string) (entity.PendingTransfer, bool) {
	for _, p := range tx.ListPending() {
		if p.HoldID == holdID {
			return p, true
		}
	}
	return entity.PendingTransfer{}, false
}

func (uc *AdminUseCase) logFailure(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	var appErr *domainerr.AppError
	if errors.As(err, &appErr) && appErr.Code == domainerr.ErrCodeHoldNotFound {
		logger.LogAdminEvent(ctx, uc.logger, operation, AdminActor, false, fields)
		return
	}
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["operation"] = operation
	uc.logger.Error(ctx, "Admin operation failed", err, fields)
}
