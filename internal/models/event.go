package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionEvent tells a user's connected devices that one of their sessions ended
// server-side.
type SessionEvent struct {
	Type       Action    `json:"type"`
	SessionID  uuid.UUID `json:"session_id"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}
