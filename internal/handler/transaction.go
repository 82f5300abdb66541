package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/fintrack/internal/auth"
	"github.com/dukerupert/fintrack/internal/model"
	"github.com/dukerupert/fintrack/internal/store"
	"github.com/dukerupert/fintrack/internal/websocket"
)

const maxCategoryLen = 20

// Notifier receives change notifications for connected clients.
type Notifier interface {
	Notify(ctx context.Context, msg websocket.Message)
}

type TransactionHandler struct {
	store  *store.TransactionStore
	hub    Notifier
	logger *slog.Logger
}

func NewTransactionHandler(ts *store.TransactionStore, hub Notifier, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{store: ts, hub: hub, logger: logger}
}

func (h *TransactionHandler) notify(ctx context.Context, action string, t *model.Transaction) {
	if h.hub == nil {
		return
	}
	var data any
	if action != "deleted" {
		data = t
	}
	h.hub.Notify(ctx, websocket.NewMessage("transaction", action, t.ID, t.UserID, data))
}

type transactionRequest struct {
	Category        *string         `json:"category"`
	Description     *string         `json:"description"`
	Amount          json.RawMessage `json:"amount"`
	TransactionType string          `json:"transaction_type"`
	Date            string          `json:"date"`
}

func (req *transactionRequest) validate() (*model.Transaction, error) {
	verr := auth.ValidationError{}
	t := &model.Transaction{Category: model.DefaultCategory, Description: req.Description}

	if req.Category != nil && strings.TrimSpace(*req.Category) != "" {
		t.Category = checkText(verr, "category", *req.Category, maxCategoryLen)
	}
	t.Amount = parseDecimal(verr, "amount", req.Amount, true, 0)

	switch req.TransactionType {
	case model.TransactionIncome, model.TransactionExpense:
		t.TransactionType = req.TransactionType
	case "":
		verr.Add("transaction_type", msgRequired)
	default:
		verr.Add("transaction_type", fmt.Sprintf("%q is not a valid choice.", req.TransactionType))
	}

	t.Date = parseDate(verr, "date", req.Date)

	if len(verr) > 0 {
		return nil, verr
	}
	return t, nil
}

// scopeFor limits non-admin callers to their own records.
func scopeFor(id auth.Identity) store.Scope {
	if id.IsAdmin() {
		return store.AnyOwner
	}
	return store.OwnedBy(id.UserID)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	txns, err := h.store.List(r.Context(), store.OwnedBy(caller.UserID))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := req.validate()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t.UserID = caller.UserID

	created, err := h.store.Create(r.Context(), t)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(r.Context(), "created", created)
	writeJSON(w, http.StatusCreated, created)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := h.store.Get(r.Context(), scopeFor(caller), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	scope := scopeFor(caller)

	existing, err := h.store.Get(r.Context(), scope, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req transactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := req.validate()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	t.ID = existing.ID
	t.UserID = existing.UserID

	updated, err := h.store.Update(r.Context(), scope, t)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(r.Context(), "updated", updated)
	writeJSON(w, http.StatusOK, updated)
}

func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	scope := scopeFor(caller)

	existing, err := h.store.Get(r.Context(), scope, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.store.Delete(r.Context(), scope, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(r.Context(), "deleted", existing)
	w.WriteHeader(http.StatusNoContent)
}
