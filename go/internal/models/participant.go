package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a player in one session. Score never drops below zero.
type Participant struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Username  string    `json:"username"`
	GroupName *string   `json:"group_name,omitempty"`
	Score     int       `json:"score"`
	JoinedAt  time.Time `json:"joined_at"`
}
