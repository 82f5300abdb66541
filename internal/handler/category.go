package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/fintrack/internal/model"
	"github.com/dukerupert/fintrack/internal/store"
)

type CategoryHandler struct {
	store  *store.CategoryStore
	logger *slog.Logger
}

func NewCategoryHandler(cs *store.CategoryStore, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{store: cs, logger: logger}
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}
