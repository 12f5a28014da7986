package models

import "encoding/json"

// ResourceKind names the resource a change event refers to.
type ResourceKind string

const (
	ResourceTask         ResourceKind = "task"
	ResourceNotification ResourceKind = "notification"
	ResourceMessage      ResourceKind = "message"
)

// ChangeKind names the kind of mutation that produced an event.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Event is a per-user change notification fanned out to live stream
// subscribers. Events are ephemeral; durable state lives in the repositories.
type Event struct {
	UserID   string          `json:"-"`
	Resource ResourceKind    `json:"resource"`
	Change   ChangeKind      `json:"change"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Name returns the SSE event name, e.g. "task.created".
func (e Event) Name() string {
	return string(e.Resource) + "." + string(e.Change)
}
