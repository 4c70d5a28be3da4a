package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationClusteringReady NotificationType = "face_clustering_ready"
)

// Notification is an insert-only record; rendering and delivery happen in
// another system.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      NotificationType
	Data      json.RawMessage
	Read      bool
	CreatedAt time.Time
}
