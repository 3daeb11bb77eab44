package outbound

import "github.com/fixora/tollgate/domain/entity"

// AuditObserver is notified of every ledger record. It is a listener only:
// it never mutates gateway state and must never block the caller.
type AuditObserver interface {
	OnAudit(record entity.AuditRecord)
}
