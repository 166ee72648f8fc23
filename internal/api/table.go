package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/relife-project/technical-service/internal/auth"
	"github.com/relife-project/technical-service/internal/store"
)

type TableHandler struct {
	tables store.TableReader
	logger *slog.Logger
}

func NewTableHandler(t store.TableReader, logger *slog.Logger) *TableHandler {
	return &TableHandler{tables: t, logger: logger}
}

type TableResponse struct {
	TableName string           `json:"table_name"`
	Data      []map[string]any `json:"data"`
	Count     int              `json:"count"`
}

// Read returns the rows of a table visible to the caller.
// GET /table/{table_name}
func (h *TableHandler) Read(w http.ResponseWriter, r *http.Request) {
	if h.tables == nil {
		writeError(w, http.StatusServiceUnavailable, "database not configured")
		return
	}
	id, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	name := chi.URLParam(r, "table_name")
	rows, err := h.tables.ReadTable(r.Context(), name, store.Caller{UserID: id.UserID, Email: id.Email})
	switch {
	case errors.Is(err, store.ErrInvalidTable):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrTableNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		h.logger.Error("table read failed", "table", name, "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read table")
		return
	}
	writeJSON(w, http.StatusOK, TableResponse{TableName: name, Data: rows, Count: len(rows)})
}
