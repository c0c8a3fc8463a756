// Package queue defines the fault lifecycle events exchanged over RabbitMQ,
// the publisher used by the core and the consumer that turns them into an
// activity log.
package queue

// Event types.
const (
	FaultCreated = "fault.created"
	FaultUpdated = "fault.updated"
	FaultClosed  = "fault.closed"
	FaultDeleted = "fault.deleted"
)

// FaultEvent is published after a fault mutation commits. It carries enough
// for downstream consumers to log or report without querying the database.
type FaultEvent struct {
	Type       string   `json:"type"`
	FaultID    int64    `json:"fault_id"`
	SystemID   string   `json:"system_id,omitempty"`
	Status     string   `json:"status,omitempty"`
	AssignTo   string   `json:"assign_to,omitempty"`
	Changed    []string `json:"changed,omitempty"`
	ActorID    int64    `json:"actor_id"`
	Actor      string   `json:"actor"`
	OccurredAt string   `json:"occurred_at"`
}
