package models

import "time"

// Refresh task states.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// RefreshTask tracks a background metadata refresh. The start call returns
// immediately; callers poll the task (or just re-fetch the library) to
// observe progress. There is no cancellation once a refresh starts.
type RefreshTask struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Total     int        `json:"total"`
	Processed int        `json:"processed"`
	Updated   int        `json:"updated"`
	Failed    int        `json:"failed"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// RefreshStarted is the immediate response to a refresh request; the actual
// updates happen out of band.
type RefreshStarted struct {
	TaskID     string `json:"taskId"`
	Total      int    `json:"total"`
	Processing bool   `json:"processing"`
}
