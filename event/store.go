package event

import (
	"context"
	"time"

	"github.com/xraph/conveyor/id"
)

// Store defines the persistence contract for events.
type Store interface {
	// PublishEvent persists evt and appends it to the stream for its name.
	PublishEvent(ctx context.Context, evt *Event) error

	// SubscribeEvent returns the oldest unacked event with the given name,
	// waiting up to timeout for one to appear. A nil event with a nil
	// error means the timeout elapsed. Events stay visible to other
	// subscribers until acked.
	SubscribeEvent(ctx context.Context, name string, timeout time.Duration) (*Event, error)

	// AckEvent marks an event consumed so subscribers skip it.
	AckEvent(ctx context.Context, eventID id.EventID) error
}
