package entity

import "time"

// EventKind names what an audit record is about.
type EventKind string

const (
	EventTransferApproved   EventKind = "TRANSFER_APPROVED"
	EventTransferHeld       EventKind = "TRANSFER_HELD"
	EventSystemLocked       EventKind = "SYSTEM_LOCKED"
	EventIdentityUnknown    EventKind = "IDENTITY_UNKNOWN"
	EventInjectionDetected  EventKind = "INJECTION_DETECTED"
	EventUrgencyDetected    EventKind = "URGENCY_DETECTED"
	EventPatternDetected    EventKind = "PATTERN_DETECTED"
	EventCredentialMismatch EventKind = "CREDENTIAL_MISMATCH"
	EventMaximumBreach      EventKind = "MAXIMUM_BREACH"
	EventHoldApproved       EventKind = "HOLD_APPROVED"
	EventHoldDenied         EventKind = "HOLD_DENIED"
	EventSystemReset        EventKind = "SYSTEM_RESET"
)

// Audit statuses. StatusLockdown marks a rejection that also tripped lockdown.
const (
	StatusApproved = "APPROVED"
	StatusHeld     = "HELD"
	StatusRejected = "REJECTED"
	StatusLockdown = "LOCKDOWN"
	StatusResolved = "RESOLVED"
	StatusActive   = "ACTIVE"
)

// AuditRecord is one link of the hash-chained audit ledger.
type AuditRecord struct {
	Seq        uint64    `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	User       string    `json:"user"`
	EventKind  EventKind `json:"event_kind"`
	Status     string    `json:"status"`
	PrevDigest string    `json:"prev_digest"`
	Digest     string    `json:"digest"`
}
