package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

// WSNotification is the frame pushed to connected clients when something
// they should know about lands in the notification table.
type WSNotification struct {
	ID     uuid.UUID       `json:"id"`
	UserID uuid.UUID       `json:"user_id"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
}
