package models

import "time"

type User struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	IsVerified   bool      `json:"is_verified" db:"is_verified"`
	PlanID       int64     `json:"plan_id" db:"subscription_plan_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

const RoleAdmin = "admin"

// SubscriptionPlan defines the admission ceiling for every user bound to it.
type SubscriptionPlan struct {
	ID                    int64  `json:"id" db:"id"`
	Name                  string `json:"plan_name" db:"plan_name"`
	Description           string `json:"description,omitempty" db:"description"`
	MaxConcurrentSessions int    `json:"max_concurrent_sessions" db:"max_concurrent_sessions"`
}

type UserWithPlan struct {
	User
	Plan SubscriptionPlan `json:"plan"`
}
