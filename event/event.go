package event

import (
	"time"

	"github.com/xraph/conveyor/id"
)

// Terminal-transition event names published by the engine. Consumers
// subscribe by name and pull; the core state machine never calls back
// into consumer code.
const (
	JobCompleted = "job.completed"
	JobDead      = "job.dead"
	JobRequeued  = "job.requeued"
)

// Event represents a named event published to the event bus. The engine
// publishes one for every terminal state transition; external code may
// publish its own for coordination.
type Event struct {
	ID        id.EventID `json:"id"`
	Name      string     `json:"name"`
	JobID     id.JobID   `json:"job_id,omitempty"`
	Payload   []byte     `json:"payload,omitempty"`
	Acked     bool       `json:"acked"`
	CreatedAt time.Time  `json:"created_at"`
}
