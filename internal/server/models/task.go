package models

import "time"

// Task statuses, stored as text.
const (
	TaskStatusPending    = "Pending"
	TaskStatusInProgress = "InProgress"
	TaskStatusCompleted  = "Completed"
	TaskStatusArchived   = "Archived"
)

// Task priorities, stored as text.
const (
	TaskPriorityLow    = "Low"
	TaskPriorityMedium = "Medium"
	TaskPriorityHigh   = "High"
	TaskPriorityUrgent = "Urgent"
)

type Task struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ReminderTime *time.Time `json:"reminder_time,omitempty"`
	Notified     bool       `json:"notified"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TaskFilters narrows task listings; zero values mean "no filter".
type TaskFilters struct {
	Status   string
	Priority string
	Page     int
	Limit    int
}
