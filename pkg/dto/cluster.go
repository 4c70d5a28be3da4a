package dto

import (
	"github.com/google/uuid"
)

type AssignClusterRequest struct {
	SourceFacePersonID uuid.UUID `json:"source_face_person_id" binding:"required"`
	LinkedUserID       uuid.UUID `json:"linked_user_id" binding:"required"`
	EventID            uuid.UUID `json:"event_id" binding:"required"`
	DeleteSource       bool      `json:"delete_source"`
	MergeIfExists      bool      `json:"merge_if_exists"`
}

type AssignClusterResponse struct {
	Success      bool      `json:"success"`
	NewClusterID uuid.UUID `json:"new_cluster_id"`
	FacesCopied  int       `json:"faces_copied"`
	TagsCreated  int       `json:"tags_created"`
	Merged       bool      `json:"merged"`
}

type LinkUserRequest struct {
	FacePersonID uuid.UUID `json:"face_person_id" binding:"required"`
	LinkedUserID uuid.UUID `json:"linked_user_id" binding:"required"`
}

type MergeClustersRequest struct {
	PrimaryPersonID   uuid.UUID `json:"primary_person_id" binding:"required"`
	SecondaryPersonID uuid.UUID `json:"secondary_person_id" binding:"required"`
}

type IgnoreClusterRequest struct {
	FacePersonID uuid.UUID `json:"face_person_id" binding:"required"`
}

type InviteClusterRequest struct {
	FacePersonID uuid.UUID `json:"face_person_id" binding:"required"`
	Email        string    `json:"email" binding:"required"`
}

type PurgeRequest struct {
	EventID      uuid.UUID  `json:"event_id" binding:"required"`
	TargetUserID *uuid.UUID `json:"target_user_id,omitempty"`
}

type PurgeResponse struct {
	EventID        uuid.UUID `json:"event_id"`
	UserID         uuid.UUID `json:"user_id"`
	DeletedFaces   int       `json:"deleted_faces"`
	DeletedPersons int       `json:"deleted_persons"`
	DeletedTags    int       `json:"deleted_tags"`
}

type ClusterResponse struct {
	ID                   uuid.UUID  `json:"id"`
	EventID              uuid.UUID  `json:"event_id"`
	ClusterLabel         int        `json:"cluster_label"`
	RepresentativeFaceID *uuid.UUID `json:"representative_face_id,omitempty"`
	LinkedUserID         *uuid.UUID `json:"linked_user_id,omitempty"`
	Status               string     `json:"status"`
	FaceCount            int        `json:"face_count"`
	MediaCount           int        `json:"media_count"`
	AvgQuality           float64    `json:"avg_quality"`
	CreatedAt            string     `json:"created_at"`
}

type ClusterListResponse struct {
	Clusters  []ClusterResponse `json:"clusters"`
	Total     int               `json:"total"`
	JobStatus string            `json:"job_status,omitempty"`
}

type SuggestionResponse struct {
	MemberID   uuid.UUID  `json:"member_id"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`
	Name       string     `json:"name"`
	Confidence int        `json:"confidence"`
	Reason     string     `json:"reason"`
	ReasonText string     `json:"reason_text"`
}
