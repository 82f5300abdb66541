package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/fintrack/internal/auth"
	"github.com/dukerupert/fintrack/internal/model"
	"github.com/dukerupert/fintrack/internal/store"
	"github.com/dukerupert/fintrack/internal/websocket"
)

const maxTitleLen = 100

type GoalHandler struct {
	store  *store.GoalStore
	hub    Notifier
	logger *slog.Logger
}

func NewGoalHandler(gs *store.GoalStore, hub Notifier, logger *slog.Logger) *GoalHandler {
	return &GoalHandler{store: gs, hub: hub, logger: logger}
}

func (h *GoalHandler) notify(ctx context.Context, action string, g *model.Goal) {
	if h.hub == nil {
		return
	}
	var data any
	if action != "deleted" {
		data = g
	}
	h.hub.Notify(ctx, websocket.NewMessage("goal", action, g.ID, g.UserID, data))
}

type goalRequest struct {
	Title         string          `json:"title"`
	TargetAmount  json.RawMessage `json:"target_amount"`
	CurrentAmount json.RawMessage `json:"current_amount"`
	Deadline      *string         `json:"deadline"`
	IsCompleted   *bool           `json:"is_completed"`
}

func (req *goalRequest) validate() (*model.Goal, error) {
	verr := auth.ValidationError{}
	g := &model.Goal{}

	g.Title = checkText(verr, "title", req.Title, maxTitleLen)
	g.TargetAmount = parseDecimal(verr, "target_amount", req.TargetAmount, true, 0)
	g.CurrentAmount = parseDecimal(verr, "current_amount", req.CurrentAmount, false, 0)

	// Deadline is optional; null and "" both clear it.
	if req.Deadline != nil && strings.TrimSpace(*req.Deadline) != "" {
		d := parseDate(verr, "deadline", *req.Deadline)
		g.Deadline = &d
	}
	if req.IsCompleted != nil {
		g.IsCompleted = *req.IsCompleted
	}

	if len(verr) > 0 {
		return nil, verr
	}
	return g, nil
}

func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	goals, err := h.store.List(r.Context(), store.OwnedBy(caller.UserID))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if goals == nil {
		goals = []model.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := req.validate()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	g.UserID = caller.UserID

	created, err := h.store.Create(r.Context(), g)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(r.Context(), "created", created)
	writeJSON(w, http.StatusCreated, created)
}

func (h *GoalHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, err := auth.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	g, err := h.store.Get(r.Context(), scopeFor(caller), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GoalHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req goalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := req.validate()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	g.ID = existing.ID
	g.UserID = existing.UserID

	updated, err := h.store.Update(r.Context(), scope, g)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.notify(r.Context(), "updated", updated)
	writeJSON(w, http.StatusOK, updated)
}

func (h *GoalHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
