package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/event"
	"github.com/xraph/conveyor/id"
)

// PublishEvent persists a new event and notifies subscribers via
// LISTEN/NOTIFY.
func (s *Store) PublishEvent(ctx context.Context, evt *event.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conveyor_events (
			id, name, job_id, payload, acked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		evt.ID.String(), evt.Name, idOrNil(evt.JobID),
		evt.Payload, evt.Acked, evt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("conveyor/postgres: publish event: %w", err)
	}

	// Notify listeners on the event channel.
	_, notifyErr := s.pool.Exec(ctx,
		`SELECT pg_notify('conveyor_events', $1)`,
		evt.Name,
	)
	if notifyErr != nil {
		// The event is persisted; subscribers fall back to polling.
		s.logger.Warn("failed to notify event subscribers",
			"event", evt.Name, "error", notifyErr)
	}

	return nil
}

// SubscribeEvent waits for an unacked event matching the given name.
// Uses a polling approach with short intervals.
func (s *Store) SubscribeEvent(ctx context.Context, name string, timeout time.Duration) (*event.Event, error) {
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			return nil, nil
		}

		row := s.pool.QueryRow(ctx, `
			SELECT id, name, job_id, payload, acked, created_at
			FROM conveyor_events
			WHERE name = $1 AND acked = FALSE
			ORDER BY created_at ASC
			LIMIT 1`,
			name,
		)

		evt, err := scanEvent(row)
		if err != nil {
			if isNoRows(err) {
				sleepCtx(ctx, 50*time.Millisecond)
				continue
			}
			return nil, fmt.Errorf("conveyor/postgres: subscribe event: %w", err)
		}
		return evt, nil
	}
}

// AckEvent acknowledges an event, marking it as consumed.
func (s *Store) AckEvent(ctx context.Context, eventID id.EventID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conveyor_events SET acked = TRUE WHERE id = $1`,
		eventID.String(),
	)
	if err != nil {
		return fmt.Errorf("conveyor/postgres: ack event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conveyor.ErrEventNotFound
	}
	return nil
}

// scanEvent scans a single event row.
func scanEvent(row pgx.Row) (*event.Event, error) {
	var (
		evt      event.Event
		idStr    string
		jobIDStr *string
	)
	err := row.Scan(
		&idStr, &evt.Name, &jobIDStr, &evt.Payload, &evt.Acked, &evt.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseEventID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("conveyor/postgres: parse event id %q: %w", idStr, parseErr)
	}
	evt.ID = parsedID

	if jobIDStr != nil {
		parsedJobID, jobErr := id.ParseJobID(*jobIDStr)
		if jobErr != nil {
			return nil, fmt.Errorf("conveyor/postgres: parse job id %q: %w", *jobIDStr, jobErr)
		}
		evt.JobID = parsedJobID
	}

	return &evt, nil
}

// sleepCtx sleeps for the given duration, or returns early if the context
// is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
