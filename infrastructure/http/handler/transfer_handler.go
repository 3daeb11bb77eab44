package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/fixora/tollgate/application/port/inbound"
	"github.com/fixora/tollgate/domain/entity"
	domainerr "github.com/fixora/tollgate/domain/error"
	"github.com/fixora/tollgate/infrastructure/http/response"
	"github.com/fixora/tollgate/infrastructure/http/validator"
	"github.com/fixora/tollgate/infrastructure/service/logger"
	apperr "github.com/fixora/tollgate/pkg/error"
)

const maxBodyBytes = 64 << 10

type TransferHandler struct {
	verifier inbound.TransferVerifier
	logger   logger.Logger
}

func NewTransferHandler(verifier inbound.TransferVerifier, log logger.Logger) *TransferHandler {
	return &TransferHandler{
		verifier: verifier,
		logger:   log,
	}
}

// VerifyTransferRequest accepts both the current field names and the older
// client_name / intent_message pair.
type VerifyTransferRequest struct {
	ClientID      string           `json:"client_id"`
	ClientName    string           `json:"client_name"`
	Amount        *decimal.Decimal `json:"amount"`
	Memo          string           `json:"memo"`
	IntentMessage string           `json:"intent_message"`
}

func (req VerifyTransferRequest) toEntity() (entity.TransferRequest, error) {
	client := req.ClientID
	if !validator.ValidateRequired(client) {
		client = req.ClientName
	}
	if !validator.ValidateRequired(client) {
		return entity.TransferRequest{}, domainerr.ErrMissingClient()
	}
	if req.Amount == nil {
		return entity.TransferRequest{}, domainerr.ErrInvalidAmount("Field: amount is required")
	}
	memo := req.Memo
	if memo == "" {
		memo = req.IntentMessage
	}
	if !validator.ValidateMemo(memo) {
		return entity.TransferRequest{}, domainerr.ErrInvalidRequest("memo must be valid UTF-8 of at most 1024 characters")
	}

	out, err := entity.NewTransferRequest(client, *req.Amount, memo)
	if errors.Is(err, entity.ErrNegativeAmount) {
		return entity.TransferRequest{}, domainerr.ErrInvalidAmount("amount cannot be negative")
	}
	if err != nil {
		return entity.TransferRequest{}, domainerr.ErrInvalidRequest(err.Error())
	}
	return out, nil
}

// VerifyTransfer runs a transfer through the policy pipeline. The HTTP status
// follows the decision: 200 approved, 202 held, 4xx rejected.
func (h *TransferHandler) VerifyTransfer(w http.ResponseWriter, r *http.Request) {
	var req VerifyTransferRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	transfer, err := req.toEntity()
	if err != nil {
		writeError(w, err)
		return
	}

	decision, err := h.verifier.Verify(r.Context(), transfer)
	if err != nil {
		h.logger.Error(r.Context(), "Transfer verification failed", err, map[string]interface{}{
			"client_id": transfer.ClientID,
		})
		writeError(w, err)
		return
	}

	response.WriteJSON(w, decision.HTTPStatus, !decision.IsRejected(), decision.Reason, decision)
}

func writeError(w http.ResponseWriter, err error) {
	mapped := apperr.MapError(err)
	response.WriteJSON(w, mapped.Status, false, mapped.Message, map[string]string{"code": mapped.Code})
}
