package models

import "time"

type Action string

const (
	ActionLogin          Action = "login"
	ActionLogout         Action = "logout"
	ActionSessionRotated Action = "session_rotated"
	ActionSessionExpired Action = "session_expired"
	ActionForcedLogout   Action = "forced_logout"
)

func (a Action) Valid() bool {
	switch a {
	case ActionLogin, ActionLogout, ActionSessionRotated, ActionSessionExpired, ActionForcedLogout:
		return true
	}
	return false
}

type SessionLog struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Action     Action    `json:"action"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	Details    string    `json:"details"`
	Timestamp  time.Time `json:"timestamp"`
}
