package manager

import (
	"time"

	"github.com/asaidimu/go-events"
)

// EventType names an entity lifecycle event the manager emits internally.
// These are observability hooks, distinct from the request-scoped
// collection hooks a caller registers per collection.
type EventType string

const (
	EntitySyncStarted  EventType = "entity.sync.started"
	EntitySyncFinished EventType = "entity.sync.finished"
	EntitySyncFailed   EventType = "entity.sync.failed"
	RecordCreated      EventType = "record.created"
	RecordUpdated      EventType = "record.updated"
	RecordDeleted      EventType = "record.deleted"
)

// Event is the payload carried on the manager's internal event bus.
type Event struct {
	Type   EventType
	Entity string
	At     time.Time
	Err    error
}

func newBus() (*events.TypedEventBus[Event], error) {
	return events.NewTypedEventBus[Event](events.DefaultConfig())
}
