package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/dlq"
	"github.com/xraph/conveyor/id"
)

// PushDLQ appends a dead-letter entry.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, dlqKey(entry.ID.String()), dlqToMap(entry))
	pipe.SAdd(ctx, dlqIDsKey, entry.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries matching the given options, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	entries, err := s.allDLQ(ctx)
	if err != nil {
		return nil, err
	}

	if opts.Queue != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Queue == opts.Queue {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	sort.Slice(entries, func(i, k int) bool {
		return entries[i].FailedAt.After(entries[k].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[opts.Offset:]
	}
	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	vals, err := s.client.HGetAll(ctx, dlqKey(entryID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: get dlq: %w", err)
	}
	if len(vals) == 0 {
		return nil, conveyor.ErrDLQNotFound
	}
	return mapToDLQ(vals)
}

// MarkRequeued stamps RequeuedAt on a DLQ entry.
func (s *Store) MarkRequeued(ctx context.Context, entryID id.DLQID, at time.Time) error {
	key := dlqKey(entryID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: mark requeued: %w", err)
	}
	if exists == 0 {
		return conveyor.ErrDLQNotFound
	}
	if err := s.client.HSet(ctx, key, "requeued_at", at.Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("conveyor/redis: mark requeued: %w", err)
	}
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	entries, err := s.allDLQ(ctx)
	if err != nil {
		return 0, err
	}

	var purged int64
	for _, e := range entries {
		if !e.FailedAt.Before(before) {
			continue
		}
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, dlqKey(e.ID.String()))
		pipe.SRem(ctx, dlqIDsKey, e.ID.String())
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return purged, fmt.Errorf("conveyor/redis: purge dlq: %w", pErr)
		}
		purged++
	}
	return purged, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, dlqIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("conveyor/redis: count dlq: %w", err)
	}
	return n, nil
}

// ── helpers ──

func (s *Store) allDLQ(ctx context.Context) ([]*dlq.Entry, error) {
	ids, err := s.client.SMembers(ctx, dlqIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(ids))
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, dlqKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		entry, mapErr := mapToDLQ(vals)
		if mapErr != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func dlqToMap(e *dlq.Entry) map[string]interface{} {
	m := map[string]interface{}{
		"id":            e.ID.String(),
		"job_id":        e.JobID.String(),
		"job_name":      e.JobName,
		"queue":         e.Queue,
		"payload":       string(e.Payload),
		"error":         e.Error,
		"reason":        string(e.Reason),
		"attempts_made": strconv.Itoa(e.AttemptsMade),
		"max_attempts":  strconv.Itoa(e.MaxAttempts),
		"stall_count":   strconv.Itoa(e.StallCount),
		"failed_at":     e.FailedAt.Format(time.RFC3339Nano),
		"created_at":    e.CreatedAt.Format(time.RFC3339Nano),
	}
	if e.RequeuedAt != nil {
		m["requeued_at"] = e.RequeuedAt.Format(time.RFC3339Nano)
	} else {
		m["requeued_at"] = ""
	}
	return m
}

func mapToDLQ(m map[string]string) (*dlq.Entry, error) {
	eID, err := id.ParseDLQID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: parse dlq id: %w", err)
	}
	jID, err := id.ParseJobID(m["job_id"])
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: parse dlq job id: %w", err)
	}

	attemptsMade, _ := strconv.Atoi(m["attempts_made"])           //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])             //nolint:errcheck // best-effort parse from trusted Redis data
	stallCount, _ := strconv.Atoi(m["stall_count"])               //nolint:errcheck // best-effort parse from trusted Redis data
	failedAt, _ := time.Parse(time.RFC3339Nano, m["failed_at"])   //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	entry := &dlq.Entry{
		ID:           eID,
		JobID:        jID,
		JobName:      m["job_name"],
		Queue:        m["queue"],
		Payload:      []byte(m["payload"]),
		Error:        m["error"],
		Reason:       dlq.Reason(m["reason"]),
		AttemptsMade: attemptsMade,
		MaxAttempts:  maxAttempts,
		StallCount:   stallCount,
		FailedAt:     failedAt,
		CreatedAt:    createdAt,
	}

	if v := m["requeued_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		entry.RequeuedAt = &t
	}

	return entry, nil
}
