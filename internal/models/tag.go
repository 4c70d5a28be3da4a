package models

import (
	"time"

	"github.com/google/uuid"
)

type TagSource string

const (
	TagSourceManual         TagSource = "manual"
	TagSourceFaceClustering TagSource = "face_clustering"
	TagSourceImported       TagSource = "imported"
	TagSourceSuggested      TagSource = "suggested"
)

// MediaTag asserts that a member appears in a media item. The pair
// (MediaID, MemberID) is unique; repeated tagging of the same pair is a no-op.
type MediaTag struct {
	ID        uuid.UUID
	MediaID   uuid.UUID
	MemberID  uuid.UUID
	TaggedBy  uuid.UUID
	Source    TagSource
	FaceID    *uuid.UUID
	CreatedAt time.Time
}

// PurgeCounts reports what a face-data purge removed.
type PurgeCounts struct {
	Faces   int
	Persons int
	Tags    int
}
