package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/relife-project/technical-service/internal/events"
	"github.com/relife-project/technical-service/internal/scoring"
)

type TechnicalHandler struct {
	events events.Publisher
	logger *slog.Logger
}

func NewTechnicalHandler(p events.Publisher, logger *slog.Logger) *TechnicalHandler {
	return &TechnicalHandler{events: p, logger: logger}
}

type PillarResponse struct {
	Pillar     string             `json:"pillar"`
	Title      string             `json:"title"`
	Profile    string             `json:"profile"`
	KPIWeight  float64            `json:"kpi_weight"`
	Normalized map[string]float64 `json:"normalized"`
	Weighted   map[string]float64 `json:"weighted"`
}

func readNumber(raw map[string]json.RawMessage, key string) (float64, bool, error) {
	v, ok := raw[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return 0, false, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, true, fmt.Errorf("%s must be a number", key)
	}
	return f, true, nil
}

// Score computes one pillar from the flat per-pillar request shape:
// profile plus <base>_kpi, <base>_min and <base>_max for each KPI.
// POST /technical/{pillar}
func (h *TechnicalHandler) Score(w http.ResponseWriter, r *http.Request) {
	pillar, err := scoring.ParsePillar(chi.URLParam(r, "pillar"))
	if err != nil {
		pillarScores.WithLabelValues("unknown", scoring.KindName(err)).Inc()
		writeScoringError(w, h.logger, err)
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	var profile string
	if v, ok := raw["profile"]; ok {
		if err := json.Unmarshal(v, &profile); err != nil {
			writeError(w, http.StatusBadRequest, "profile must be a string")
			return
		}
	}

	values := make(map[string]float64)
	bounds := make(map[string]scoring.Bounds)
	for _, k := range scoring.PillarKPIs(pillar) {
		base := k.Base()
		v, ok, err := readNumber(raw, base+"_kpi")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if ok {
			values[k.Name] = v
		}
		lo, okLo, errLo := readNumber(raw, base+"_min")
		hi, okHi, errHi := readNumber(raw, base+"_max")
		if errLo != nil || errHi != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s_min and %s_max must be numbers", base, base))
			return
		}
		switch {
		case okLo && okHi:
			bounds[k.Name] = scoring.Bounds{Min: lo, Max: hi}
		case !okLo:
			h.reject(w, pillar, &scoring.InputError{Kind: scoring.ErrMissingKPI, KPI: base + "_min"})
			return
		default:
			h.reject(w, pillar, &scoring.InputError{Kind: scoring.ErrMissingKPI, KPI: base + "_max"})
			return
		}
	}

	res, err := scoring.ScorePillar(pillar, values, bounds, scoring.Profile(profile))
	if err != nil {
		h.reject(w, pillar, err)
		return
	}
	pillarScores.WithLabelValues(string(pillar), "ok").Inc()

	resp := PillarResponse{
		Pillar:     string(res.Pillar),
		Title:      pillar.Title(),
		Profile:    string(res.Profile),
		KPIWeight:  res.KPIWeight,
		Normalized: make(map[string]float64, len(res.KPIs)),
		Weighted:   make(map[string]float64, len(res.KPIs)),
	}
	for _, k := range res.KPIs {
		base := scoring.KPI{Name: k.Name}.Base()
		resp.Normalized[base] = k.Normalized
		resp.Weighted[base] = k.Weighted
	}

	if h.events != nil {
		ev := events.PillarScoredEvent{
			Pillar:    string(pillar),
			Profile:   profile,
			UserID:    callerID(r),
			Timestamp: time.Now().UTC(),
		}
		if err := h.events.Publish(events.SubjectPillarScored(string(pillar)), ev); err != nil {
			h.logger.Warn("failed to publish event", "pillar", pillar, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TechnicalHandler) reject(w http.ResponseWriter, pillar scoring.Pillar, err error) {
	pillarScores.WithLabelValues(string(pillar), scoring.KindName(err)).Inc()
	writeScoringError(w, h.logger, err)
}
