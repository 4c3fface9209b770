package models

import (
	"time"

	"github.com/google/uuid"
)

// ActiveSession is one admitted device. SessionToken is a capability credential and is
// never rendered in API responses.
type ActiveSession struct {
	ID           uuid.UUID `json:"id" example:"a1b2c3d4-e5f6-7890-1234-567890abcdef"`
	UserID       int64     `json:"user_id"`
	SessionToken string    `json:"-"`
	DeviceInfo   string    `json:"device_info" example:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) ..."`
	IPAddress    string    `json:"ip_address" example:"198.51.100.10"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}
