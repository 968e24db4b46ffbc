package pebble

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/dlq"
	"github.com/xraph/conveyor/id"
)

// PushDLQ appends a dead-letter entry. The index orders entries newest
// first via the complemented timestamp.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	if err := setJSON(b, dlqKey(entry.ID.String()), entry); err != nil {
		return err
	}
	_ = b.Set(dlqIdxKey(entry.FailedAt, entry.ID.String()), nil, nil) //nolint:errcheck // batch writes only fail on commit
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries matching the given options, newest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	iter, err := s.prefixIter([]byte(prefixDLQIdx))
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	var entries []*dlq.Entry
	skipped := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		eID := idFromTimeIdx(iter.Key(), prefixDLQIdx)

		var entry dlq.Entry
		if err := s.getJSON(dlqKey(eID), &entry, conveyor.ErrDLQNotFound); err != nil {
			continue
		}
		if opts.Queue != "" && entry.Queue != opts.Queue {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		entries = append(entries, &entry)
		if opts.Limit > 0 && len(entries) >= opts.Limit {
			break
		}
	}
	return entries, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	var entry dlq.Entry
	if err := s.getJSON(dlqKey(entryID.String()), &entry, conveyor.ErrDLQNotFound); err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkRequeued stamps RequeuedAt on a DLQ entry.
func (s *Store) MarkRequeued(ctx context.Context, entryID id.DLQID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry dlq.Entry
	if err := s.getJSON(dlqKey(entryID.String()), &entry, conveyor.ErrDLQNotFound); err != nil {
		return err
	}

	entry.RequeuedAt = &at

	b := s.db.NewBatch()
	if err := setJSON(b, dlqKey(entryID.String()), &entry); err != nil {
		return err
	}
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: mark requeued: %w", err)
	}
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.prefixIter([]byte(prefixDLQIdx))
	if err != nil {
		return 0, err
	}
	defer func() { _ = iter.Close() }()

	b := s.db.NewBatch()
	var purged int64
	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		failedMs := ^timeFromIdx(key, prefixDLQIdx)
		if !time.UnixMilli(int64(failedMs)).Before(before) {
			continue
		}
		eID := idFromTimeIdx(key, prefixDLQIdx)
		_ = b.Delete(dlqKey(eID), nil)                 //nolint:errcheck // batch writes only fail on commit
		_ = b.Delete(append([]byte(nil), key...), nil) //nolint:errcheck // batch writes only fail on commit
		purged++
	}

	if purged == 0 {
		_ = b.Close()
		return 0, nil
	}
	if err := s.commit(b); err != nil {
		return 0, fmt.Errorf("conveyor/pebble: purge dlq: %w", err)
	}
	return purged, nil
}

// CountDLQ returns the total number of DLQ entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	iter, err := s.prefixIter([]byte(prefixDLQ))
	if err != nil {
		return 0, err
	}
	defer func() { _ = iter.Close() }()

	var count int64
	for ok := iter.First(); ok; ok = iter.Next() {
		count++
	}
	return count, nil
}
