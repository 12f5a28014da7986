// Package models contains plain data structures shared by repositories,
// services and transport handlers.
package models

import "time"

// User is an account row. PasswordHash holds an argon2id PHC string and is
// empty for accounts created through an OAuth provider.
type User struct {
	ID                  string     `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	GoogleID            string     `json:"-"`
	NotificationEnabled bool       `json:"notification_enabled"`
	FailedLogins        int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// UserStats aggregates task counts for the profile stats endpoint.
type UserStats struct {
	TotalTasks     int64 `json:"total_tasks"`
	PendingTasks   int64 `json:"pending_tasks"`
	CompletedTasks int64 `json:"completed_tasks"`
}
