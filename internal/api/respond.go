package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/relife-project/technical-service/internal/scoring"
)

type errorResponse struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	Profile    string `json:"profile,omitempty"`
	Pillar     string `json:"pillar,omitempty"`
	KPI        string `json:"kpi,omitempty"`
	Technology string `json:"technology,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeScoringError maps scoring failures onto HTTP: input problems are 422
// with the offending field, anything else is an opaque 500.
func writeScoringError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var inputErr *scoring.InputError
	if errors.As(err, &inputErr) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:      inputErr.Error(),
			Kind:       scoring.KindName(inputErr),
			Profile:    inputErr.Profile,
			Pillar:     inputErr.Pillar,
			KPI:        inputErr.KPI,
			Technology: inputErr.Technology,
		})
		return
	}
	logger.Error("scoring failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "unexpected error", Kind: "unexpected"})
}
