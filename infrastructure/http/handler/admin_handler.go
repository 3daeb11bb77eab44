package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/fixora/tollgate/application/port/inbound"
	"github.com/fixora/tollgate/infrastructure/http/middleware"
	"github.com/fixora/tollgate/infrastructure/http/response"
)

type AdminHandler struct {
	admin inbound.AdminUseCase
}

func NewAdminHandler(admin inbound.AdminUseCase) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type DecideRequest struct {
	Action string `json:"action"`
}

func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.admin.ListPending(r.Context(), middleware.GetAdminCredential(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "success", pending)
}

func (h *AdminHandler) Decide(w http.ResponseWriter, r *http.Request) {
	holdID := mux.Vars(r)["holdId"]

	// An unreadable body leaves the action empty; the use case checks the
	// credential before rejecting it, so unauthorized callers learn nothing.
	var req DecideRequest
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	action := inbound.AdminAction(strings.ToLower(strings.TrimSpace(req.Action)))

	res, err := h.admin.Decide(r.Context(), middleware.GetAdminCredential(r.Context()), holdID, action)
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "pending transfer resolved", res)
}

func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.Reset(r.Context(), middleware.GetAdminCredential(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "system reset, lockdown cleared", res)
}

func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	records, err := h.admin.AuditLog(r.Context(), middleware.GetAdminCredential(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "success", records)
}

func (h *AdminHandler) VerifyAudit(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.VerifyAudit(r.Context(), middleware.GetAdminCredential(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	message := "audit chain intact"
	if !res.Valid {
		status = http.StatusConflict
		message = "audit chain broken"
	}
	response.WriteJSON(w, status, res.Valid, message, res)
}

func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.Status(r.Context(), middleware.GetAdminCredential(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, http.StatusOK, "success", res)
}

func (h *AdminHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	res, err := h.admin.OpenSession(r.Context(), middleware.GetAdminCredential(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, http.StatusCreated, "admin session opened", res)
}

// RequireAdmin gates handlers that are not use case calls themselves, such
// as the event stream, behind the same credential check.
func (h *AdminHandler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.admin.Authorize(r.Context(), middleware.GetAdminCredential(r.Context())); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health reports liveness only. It says nothing about lockdown state.
func Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "ok", map[string]string{"status": "ok"})
}
