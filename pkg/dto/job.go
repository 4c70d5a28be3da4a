package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

type EnqueueDetectRequest struct {
	EventID  uuid.UUID   `json:"event_id" binding:"required"`
	MediaIDs []uuid.UUID `json:"media_ids,omitempty"`
	Priority string      `json:"priority,omitempty"`
}

type EnqueueClusterRequest struct {
	EventID  uuid.UUID `json:"event_id" binding:"required"`
	Priority string    `json:"priority,omitempty"`
}

type JobResponse struct {
	ID          uuid.UUID       `json:"job_id"`
	JobType     string          `json:"job_type"`
	EventID     uuid.UUID       `json:"event_id"`
	MediaIDs    []uuid.UUID     `json:"media_ids,omitempty"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

// EnqueueClusterResponse is a JobResponse plus whether this request created
// the job or found one already running.
type EnqueueClusterResponse struct {
	JobResponse
	Created bool `json:"created"`
}

// CallbackRequest is what a worker posts when a job finishes or fails.
type CallbackRequest struct {
	JobID  uuid.UUID       `json:"job_id" binding:"required"`
	Status string          `json:"status" binding:"required"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}
