package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeDetect  JobType = "detect"
	JobTypeCluster JobType = "cluster"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final. Jobs are never deleted,
// so a terminal job stays around as an audit record.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

type JobPriority string

const (
	PriorityHigh   JobPriority = "high"
	PriorityNormal JobPriority = "normal"
	PriorityLow    JobPriority = "low"
)

func (p JobPriority) Valid() bool {
	return p == PriorityHigh || p == PriorityNormal || p == PriorityLow
}

// Job is a unit of asynchronous detection or clustering work.
// MediaIDs is populated for detect jobs only.
type Job struct {
	ID          uuid.UUID
	JobType     JobType
	EventID     uuid.UUID
	MediaIDs    []uuid.UUID
	Status      JobStatus
	Priority    JobPriority
	Result      json.RawMessage
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// JobPayload is the dispatch payload sent to the worker. Detect and cluster
// are distinct shapes sharing the job type as discriminant, so this is a
// sealed union rather than one struct with optional fields.
type JobPayload interface {
	Kind() JobType
}

// MediaRef pairs a media item with the signed URL the worker downloads it
// from. URL may be empty when signing failed for that item.
type MediaRef struct {
	MediaID   uuid.UUID `json:"media_id"`
	SignedURL string    `json:"signed_url,omitempty"`
}

type DetectPayload struct {
	JobID    uuid.UUID   `json:"job_id"`
	EventID  uuid.UUID   `json:"event_id"`
	Media    []MediaRef  `json:"media"`
	Priority JobPriority `json:"priority"`
}

func (DetectPayload) Kind() JobType { return JobTypeDetect }

type ClusterPayload struct {
	JobID    uuid.UUID   `json:"job_id"`
	EventID  uuid.UUID   `json:"event_id"`
	Priority JobPriority `json:"priority"`
}

func (ClusterPayload) Kind() JobType { return JobTypeCluster }

// CallbackResult holds the counters the callback ingestor reacts to. The raw
// result document is persisted verbatim on the job; this only decodes the
// fields that drive follow-up behavior.
type CallbackResult struct {
	EventID         *uuid.UUID `json:"event_id,omitempty"`
	MediaID         *uuid.UUID `json:"media_id,omitempty"`
	FacesDetected   *int       `json:"faces_detected,omitempty"`
	ClustersCreated *int       `json:"clusters_created,omitempty"`
}

// FaceStats are the detection-progress counters the threshold trigger
// decides over.
type FaceStats struct {
	ProcessedMedia int // media with at least one detected face
	TotalMedia     int
	TotalFaces     int
}
