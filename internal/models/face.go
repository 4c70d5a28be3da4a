package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Face is a single detection produced by the worker. FacePersonID stays nil
// until the face is clustered or merged into an identity.
type Face struct {
	ID           uuid.UUID
	MediaID      uuid.UUID
	EventID      uuid.UUID
	FacePersonID *uuid.UUID
	BBox         json.RawMessage
	Embedding    []float32
	QualityScore float32
	CreatedAt    time.Time
}

// Media is the slice of the media table this service reads: enough to hand
// the worker a signed download URL.
type Media struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	StoragePath string
}
