package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyClientID  = errors.New("client ID cannot be empty")
	ErrNegativeAmount = errors.New("amount cannot be negative")
)

// TransferRequest is a client's request to move funds. It is never modified
// after submission.
type TransferRequest struct {
	ClientID string          `json:"client_id"`
	Amount   decimal.Decimal `json:"amount"`
	Memo     string          `json:"memo"`
}

func NewTransferRequest(clientID string, amount decimal.Decimal, memo string) (TransferRequest, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return TransferRequest{}, ErrEmptyClientID
	}
	if amount.IsNegative() {
		return TransferRequest{}, ErrNegativeAmount
	}
	return TransferRequest{
		ClientID: clientID,
		Amount:   amount,
		Memo:     memo,
	}, nil
}

// PendingTransfer is a request held for manual review because it exceeded the
// daily limit.
type PendingTransfer struct {
	HoldID      string          `json:"hold_id"`
	Request     TransferRequest `json:"request"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// CompletedTransfer is a held transfer released by an administrator.
type CompletedTransfer struct {
	HoldID      string          `json:"hold_id"`
	Request     TransferRequest `json:"request"`
	SubmittedAt time.Time       `json:"submitted_at"`
	ApprovedBy  string          `json:"approved_by"`
	ApprovedAt  time.Time       `json:"approved_at"`
}

func NewCompletedTransfer(p PendingTransfer, actor string, at time.Time) CompletedTransfer {
	return CompletedTransfer{
		HoldID:      p.HoldID,
		Request:     p.Request,
		SubmittedAt: p.SubmittedAt,
		ApprovedBy:  actor,
		ApprovedAt:  at,
	}
}
