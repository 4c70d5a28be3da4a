package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is the slice of the events table this service needs: ownership and
// the face-recognition feature flag.
type Event struct {
	ID                     uuid.UUID
	Name                   string
	OwnerID                uuid.UUID
	FaceRecognitionEnabled bool
	CreatedAt              time.Time
}

type MemberRole string

const (
	RoleOwner       MemberRole = "owner"
	RoleCoOrganizer MemberRole = "co-organizer"
	RoleParticipant MemberRole = "participant"
)

// EventMember scopes a person (account holder or invitee) to one event.
// UserID is nil until the person joins with an account. Members are the
// addressable target of tagging.
type EventMember struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	UserID    *uuid.UUID
	Name      string
	Email     string
	Role      MemberRole
	CreatedAt time.Time
}

// MemberStats is a member joined with the number of media items they are
// already tagged in, the volume signal the suggestion scorer works from.
type MemberStats struct {
	EventMember
	TagCount int
}

// Profile is the directory record used as name/email fallback when the merge
// engine provisions a membership for a linked user.
type Profile struct {
	ID       uuid.UUID
	FullName string
	Email    string
}
