package events

import "time"

type RankingCompletedEvent struct {
	RunID        string    `json:"run_id"`
	Profile      string    `json:"profile"`
	Count        int       `json:"count"`
	Top          string    `json:"top,omitempty"`
	TopCloseness float64   `json:"top_closeness,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	AuthMethod   string    `json:"auth_method,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

type RankingRejectedEvent struct {
	RunID     string    `json:"run_id"`
	Profile   string    `json:"profile,omitempty"`
	Kind      string    `json:"kind"`
	Error     string    `json:"error"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type PillarScoredEvent struct {
	Pillar    string    `json:"pillar"`
	Profile   string    `json:"profile"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type StorageUploadedEvent struct {
	UserID    string    `json:"user_id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}
