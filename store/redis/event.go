package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/event"
	"github.com/xraph/conveyor/id"
)

// eventPollInterval is the poll interval SubscribeEvent uses between
// stream scans.
const eventPollInterval = 50 * time.Millisecond

// PublishEvent persists the event as a Hash and appends its ID to the
// per-name Stream subscribers scan.
func (s *Store) PublishEvent(ctx context.Context, evt *event.Event) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, eventKey(evt.ID.String()), eventToMap(evt))
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: eventStreamKey(evt.Name),
		Values: map[string]interface{}{"id": evt.ID.String()},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: publish event: %w", err)
	}
	return nil
}

// SubscribeEvent polls the per-name Stream for the oldest unacked event
// until one appears or the timeout expires. Returns nil on timeout.
func (s *Store) SubscribeEvent(ctx context.Context, name string, timeout time.Duration) (*event.Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		msgs, err := s.client.XRangeN(ctx, eventStreamKey(name), "-", "+", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("conveyor/redis: subscribe scan: %w", err)
		}

		for _, msg := range msgs {
			eID, ok := msg.Values["id"].(string)
			if !ok {
				continue
			}
			vals, getErr := s.client.HGetAll(ctx, eventKey(eID)).Result()
			if getErr != nil || len(vals) == 0 {
				continue
			}
			if vals["acked"] == "1" {
				continue
			}
			return mapToEvent(vals)
		}

		if time.Now().After(deadline) {
			return nil, nil
		}
		if err := sleepCtx(ctx, eventPollInterval); err != nil {
			return nil, err
		}
	}
}

// AckEvent marks an event as consumed.
func (s *Store) AckEvent(ctx context.Context, eventID id.EventID) error {
	key := eventKey(eventID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: ack event: %w", err)
	}
	if exists == 0 {
		return conveyor.ErrEventNotFound
	}
	if err := s.client.HSet(ctx, key, "acked", "1").Err(); err != nil {
		return fmt.Errorf("conveyor/redis: ack event: %w", err)
	}
	return nil
}

// ── helpers ──

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

func eventToMap(evt *event.Event) map[string]interface{} {
	return map[string]interface{}{
		"id":         evt.ID.String(),
		"name":       evt.Name,
		"job_id":     evt.JobID.String(),
		"payload":    string(evt.Payload),
		"acked":      boolToStr(evt.Acked),
		"created_at": evt.CreatedAt.Format(time.RFC3339Nano),
	}
}

func mapToEvent(m map[string]string) (*event.Event, error) {
	eID, err := id.ParseEventID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: parse event id: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	evt := &event.Event{
		ID:        eID,
		Name:      m["name"],
		Acked:     m["acked"] == "1",
		CreatedAt: createdAt,
	}
	if v := m["job_id"]; v != "" {
		evt.JobID, _ = id.ParseJobID(v) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["payload"]; v != "" {
		evt.Payload = []byte(v)
	}
	return evt, nil
}
