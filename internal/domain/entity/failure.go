package entity

import "time"

// FailureRecord is a persisted handler failure, kept for diagnostics
type FailureRecord struct {
	ID         int64     `json:"id"`
	HandlerID  string    `json:"handler_id"`
	Event      string    `json:"event"`
	Mode       string    `json:"mode"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}
