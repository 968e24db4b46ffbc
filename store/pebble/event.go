package pebble

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/event"
	"github.com/xraph/conveyor/id"
)

// eventPollInterval is the poll interval SubscribeEvent uses between
// stream scans.
const eventPollInterval = 50 * time.Millisecond

// PublishEvent persists the event and appends it to the per-name stream
// index.
func (s *Store) PublishEvent(ctx context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	if err := setJSON(b, eventKey(evt.ID.String()), evt); err != nil {
		return err
	}
	_ = b.Set(eventStreamKey(evt.Name, evt.CreatedAt, evt.ID.String()), nil, nil) //nolint:errcheck // batch writes only fail on commit
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: publish event: %w", err)
	}
	return nil
}

// SubscribeEvent polls the per-name stream for the oldest unacked event
// until one appears or the timeout expires. Returns nil on timeout.
func (s *Store) SubscribeEvent(ctx context.Context, name string, timeout time.Duration) (*event.Event, error) {
	deadline := time.Now().Add(timeout)
	prefix := prefixEventStream + name + "/"

	for {
		evt, err := s.oldestUnacked([]byte(prefix), prefix)
		if err != nil {
			return nil, err
		}
		if evt != nil {
			return evt, nil
		}

		if time.Now().After(deadline) {
			return nil, nil
		}
		if err := sleepCtx(ctx, eventPollInterval); err != nil {
			return nil, err
		}
	}
}

// oldestUnacked scans one stream prefix for the first unacked event.
func (s *Store) oldestUnacked(prefix []byte, prefixStr string) (*event.Event, error) {
	iter, err := s.prefixIter(prefix)
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	for ok := iter.First(); ok; ok = iter.Next() {
		eID := idFromTimeIdx(iter.Key(), prefixStr)

		var evt event.Event
		if getErr := s.getJSON(eventKey(eID), &evt, conveyor.ErrEventNotFound); getErr != nil {
			if errors.Is(getErr, conveyor.ErrEventNotFound) {
				continue
			}
			return nil, getErr
		}
		if evt.Acked {
			continue
		}
		return &evt, nil
	}
	return nil, nil
}

// AckEvent marks an event as consumed.
func (s *Store) AckEvent(ctx context.Context, eventID id.EventID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evt event.Event
	if err := s.getJSON(eventKey(eventID.String()), &evt, conveyor.ErrEventNotFound); err != nil {
		return err
	}

	evt.Acked = true

	b := s.db.NewBatch()
	if err := setJSON(b, eventKey(eventID.String()), &evt); err != nil {
		return err
	}
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: ack event: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
