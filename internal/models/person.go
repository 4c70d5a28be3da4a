package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type PersonStatus string

const (
	PersonStatusPending PersonStatus = "pending"
	PersonStatusLinked  PersonStatus = "linked"
	PersonStatusInvited PersonStatus = "invited"
	PersonStatusIgnored PersonStatus = "ignored"
	PersonStatusMerged  PersonStatus = "merged"
)

// FacePerson is a tentative cluster of faces believed to be one individual.
// ClusterLabel is unique within an event and monotonically increasing; it is
// not globally unique. A merged cluster keeps its row (MergedIntoID set)
// unless the caller asked for the shell to be deleted.
type FacePerson struct {
	ID                   uuid.UUID
	EventID              uuid.UUID
	ClusterLabel         int
	RepresentativeFaceID *uuid.UUID
	LinkedUserID         *uuid.UUID
	Status               PersonStatus
	MergedIntoID         *uuid.UUID
	InvitationEmail      string
	InvitedAt            *time.Time
	Metadata             json.RawMessage
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PersonStats is a FacePerson joined with the aggregate counters the UI and
// the suggestion scorer consume.
type PersonStats struct {
	FacePerson
	FaceCount  int
	MediaCount int
	AvgQuality float64
}
