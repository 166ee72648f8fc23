package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/relife-project/technical-service/internal/auth"
	"github.com/relife-project/technical-service/internal/events"
	"github.com/relife-project/technical-service/internal/scoring"
)

const maxBodyBytes = 4 << 20

var kpiNames = func() map[string]bool {
	m := make(map[string]bool)
	for _, n := range scoring.KPINames() {
		m[n] = true
	}
	return m
}()

type MCDAHandler struct {
	events events.Publisher
	logger *slog.Logger
}

func NewMCDAHandler(p events.Publisher, logger *slog.Logger) *MCDAHandler {
	return &MCDAHandler{events: p, logger: logger}
}

// TechnologyInput decodes a flat technology object: "name" plus one numeric
// field per KPI. Unknown non-numeric fields are ignored; a null KPI counts
// as missing.
type TechnologyInput struct {
	Name string
	KPIs map[string]float64
}

func (t *TechnologyInput) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	nameRaw, ok := raw["name"]
	if !ok {
		return errors.New(`technology missing "name"`)
	}
	if err := json.Unmarshal(nameRaw, &t.Name); err != nil {
		return fmt.Errorf("technology name: %w", err)
	}

	t.KPIs = make(map[string]float64, len(raw))
	for k, v := range raw {
		if k == "name" || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			if kpiNames[k] {
				return fmt.Errorf("technology %q: %s must be a number", t.Name, k)
			}
			continue
		}
		t.KPIs[k] = f
	}
	return nil
}

type TopsisRequest struct {
	Profile      string               `json:"profile"`
	Technologies []TechnologyInput    `json:"technologies"`
	MinsMaxes    map[string][]float64 `json:"mins_maxes"`
}

type TopsisResponse struct {
	RunID      string                 `json:"run_id"`
	Profile    string                 `json:"profile"`
	Count      int                    `json:"count"`
	Ranking    []scoring.RankedResult `json:"ranking"`
	IdealBest  map[string]float64     `json:"ideal_best,omitempty"`
	IdealWorst map[string]float64     `json:"ideal_worst,omitempty"`
}

func toBounds(in map[string][]float64) (map[string]scoring.Bounds, error) {
	out := make(map[string]scoring.Bounds, len(in))
	for k, v := range in {
		if len(v) != 2 {
			return nil, fmt.Errorf("mins_maxes[%q] must be a [min, max] pair, got %d values", k, len(v))
		}
		out[k] = scoring.Bounds{Min: v[0], Max: v[1]}
	}
	return out, nil
}

// profileLabel keeps metric cardinality bounded when callers send garbage.
func profileLabel(p string) string {
	if _, err := scoring.ParseProfile(p); err != nil {
		return "invalid"
	}
	return p
}

// Topsis ranks a batch of technologies.
// POST /mcda/topsis[?explain=true]
func (h *MCDAHandler) Topsis(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	runID := uuid.New().String()

	var req TopsisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	bounds, err := toBounds(req.MinsMaxes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	explain, _ := strconv.ParseBool(r.URL.Query().Get("explain"))

	techs := make([]scoring.Technology, len(req.Technologies))
	for i, t := range req.Technologies {
		techs[i] = scoring.Technology{Name: t.Name, KPIs: t.KPIs}
	}

	var userID, method string
	if id, ok := auth.FromContext(r.Context()); ok {
		userID, method = id.UserID, string(id.Method)
	}

	h.logger.Info("running topsis ranking",
		"run_id", runID,
		"profile", req.Profile,
		"n_technologies", len(techs),
		"user_id", userID,
	)
	rankingCandidates.Observe(float64(len(techs)))

	result, err := scoring.Evaluate(techs, bounds, scoring.Profile(req.Profile))
	if err != nil {
		rankings.WithLabelValues(profileLabel(req.Profile), scoring.KindName(err)).Inc()
		h.publish(events.SubjectRankingRejected, events.RankingRejectedEvent{
			RunID:     runID,
			Profile:   req.Profile,
			Kind:      scoring.KindName(err),
			Error:     err.Error(),
			UserID:    userID,
			Timestamp: time.Now().UTC(),
		})
		writeScoringError(w, h.logger, err)
		return
	}
	rankings.WithLabelValues(req.Profile, "ok").Inc()

	resp := TopsisResponse{
		RunID:   runID,
		Profile: string(result.Profile),
		Count:   len(result.Results),
		Ranking: result.Results,
	}
	if explain {
		resp.IdealBest = result.IdealBest
		resp.IdealWorst = result.IdealWorst
	} else {
		for i := range resp.Ranking {
			resp.Ranking[i].Weighted = nil
		}
	}

	ev := events.RankingCompletedEvent{
		RunID:      runID,
		Profile:    req.Profile,
		Count:      resp.Count,
		UserID:     userID,
		AuthMethod: method,
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
	if len(resp.Ranking) > 0 {
		ev.Top = resp.Ranking[0].Name
		ev.TopCloseness = resp.Ranking[0].Closeness
	}
	h.publish(events.SubjectRankingCompleted(runID), ev)

	writeJSON(w, http.StatusOK, resp)
}

type kpiWeight struct {
	Name        string  `json:"name"`
	Orientation string  `json:"orientation"`
	Weight      float64 `json:"weight"`
}

type pillarWeights struct {
	Pillar    string      `json:"pillar"`
	Title     string      `json:"title"`
	Score     int         `json:"score"`
	KPIWeight float64     `json:"kpi_weight"`
	KPIs      []kpiWeight `json:"kpis"`
}

type WeightsResponse struct {
	Profile string          `json:"profile"`
	Total   float64         `json:"total"`
	Pillars []pillarWeights `json:"pillars"`
}

// Weights lists the per-KPI weights a profile applies.
// GET /mcda/weights?profile=
func (h *MCDAHandler) Weights(w http.ResponseWriter, r *http.Request) {
	profile, err := scoring.ParseProfile(r.URL.Query().Get("profile"))
	if err != nil {
		writeScoringError(w, h.logger, err)
		return
	}
	set, err := scoring.ProfileWeights(profile)
	if err != nil {
		writeScoringError(w, h.logger, err)
		return
	}

	resp := WeightsResponse{Profile: string(profile), Total: set.Sum()}
	for _, p := range scoring.Pillars() {
		score, err := scoring.PillarScore(p, profile)
		if err != nil {
			writeScoringError(w, h.logger, err)
			return
		}
		pw := pillarWeights{Pillar: string(p), Title: p.Title(), Score: score}
		for _, k := range scoring.PillarKPIs(p) {
			pw.KPIWeight = set[k.Name]
			pw.KPIs = append(pw.KPIs, kpiWeight{Name: k.Name, Orientation: k.Orientation.String(), Weight: set[k.Name]})
		}
		resp.Pillars = append(resp.Pillars, pw)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *MCDAHandler) publish(subject string, data any) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(subject, data); err != nil {
		h.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
