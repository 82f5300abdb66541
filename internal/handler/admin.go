package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/fintrack/internal/auth"
	"github.com/dukerupert/fintrack/internal/model"
	"github.com/dukerupert/fintrack/internal/store"
)

// AdminHandler serves /admin routes. Every route is mounted behind
// middleware.RequireAdmin.
type AdminHandler struct {
	gateway      *auth.Gateway
	transactions *store.TransactionStore
	goals        *store.GoalStore
	logger       *slog.Logger
}

func NewAdminHandler(g *auth.Gateway, ts *store.TransactionStore, gs *store.GoalStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{gateway: g, transactions: ts, goals: gs, logger: logger}
}

type adminUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.gateway.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req adminUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.gateway.CreateUser(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("admin created user", "user_id", view.ID, "role", view.Role, "by", auth.UserID(r.Context()))
	writeJSON(w, http.StatusCreated, view)
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	u, err := h.gateway.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	goals, err := h.goals.List(r.Context(), store.OwnedBy(id))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	txns, err := h.transactions.List(r.Context(), store.OwnedBy(id))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	detail := model.UserDetail{UserView: u.View(), Goals: goals, Transactions: txns}
	if detail.Goals == nil {
		detail.Goals = []model.Goal{}
	}
	if detail.Transactions == nil {
		detail.Transactions = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req userPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := h.gateway.UpdateUser(r.Context(), id, req.patch())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireAdmin(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.gateway.DeleteUser(r.Context(), caller, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("admin deleted user", "user_id", id, "by", caller.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.goals.List(r.Context(), store.AnyOwner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if goals == nil {
		goals = []model.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.transactions.List(r.Context(), store.AnyOwner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}
