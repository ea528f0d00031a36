package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mithix/backend/internal/ledger"
	"github.com/mithix/backend/internal/models"
)

// AccountReader is the subset of the record store needed for account reads.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListRecordsByAccount(ctx context.Context, accountID string) ([]*models.GenerationRecord, error)
}

// CreditLedger is the subset of ledger.Service the account routes use.
type CreditLedger interface {
	Adjust(ctx context.Context, accountID string, balance int) (*models.Account, error)
	Entries(ctx context.Context, accountID string) ([]*models.CreditEntry, error)
}

// AccountHandler serves /api/user/{id}/... endpoints.
type AccountHandler struct {
	Accounts AccountReader
	Ledger   CreditLedger
	Logger   *slog.Logger
}

type creditsResponse struct {
	Credits int `json:"credits"`
}

// GetCredits handles GET /api/user/{id}/credits.
func (h *AccountHandler) GetCredits(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Accounts.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		h.Logger.Error("get account", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if acc == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{Credits: acc.Balance})
}

// ListImages handles GET /api/user/{id}/images. Unknown accounts yield [].
func (h *AccountHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Accounts.ListRecordsByAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		h.Logger.Error("list records", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if recs == nil {
		recs = []*models.GenerationRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// ListLedger handles GET /api/user/{id}/ledger.
func (h *AccountHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Ledger.Entries(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.Logger.Error("list ledger", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if entries == nil {
		entries = []*models.CreditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type setCreditsRequest struct {
	Credits *int `json:"credits"`
}

// SetCredits handles PUT /api/user/{id}/credits (operator only).
func (h *AccountHandler) SetCredits(w http.ResponseWriter, r *http.Request) {
	var req setCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Credits == nil {
		writeError(w, http.StatusBadRequest, "credits is required")
		return
	}
	acc, err := h.Ledger.Adjust(r.Context(), r.PathValue("id"), *req.Credits)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "credits must not be negative")
		case errors.Is(err, ledger.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "User not found")
		default:
			h.Logger.Error("adjust credits", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.Logger.Info("credits adjusted", "account_id", acc.ID, "credits", acc.Balance)
	writeJSON(w, http.StatusOK, creditsResponse{Credits: acc.Balance})
}
