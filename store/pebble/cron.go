package pebble

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	pebbledb "github.com/cockroachdb/pebble"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/cron"
	"github.com/xraph/conveyor/id"
)

// RegisterCron persists a new cron entry. The name index arbitrates
// duplicates.
func (s *Store) RegisterCron(ctx context.Context, entry *cron.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(cronNameKey(entry.Name)); err == nil {
		return conveyor.ErrDuplicateCron
	} else if !errors.Is(err, pebbledb.ErrNotFound) {
		return fmt.Errorf("conveyor/pebble: register cron: %w", err)
	}

	b := s.db.NewBatch()
	if err := setJSON(b, cronKey(entry.ID.String()), entry); err != nil {
		return err
	}
	_ = b.Set(cronNameKey(entry.Name), []byte(entry.ID.String()), nil) //nolint:errcheck // batch writes only fail on commit
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: register cron: %w", err)
	}
	return nil
}

// GetCron retrieves a cron entry by ID.
func (s *Store) GetCron(ctx context.Context, entryID id.CronID) (*cron.Entry, error) {
	var entry cron.Entry
	if err := s.getJSON(cronKey(entryID.String()), &entry, conveyor.ErrCronNotFound); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListCrons returns all cron entries sorted by name.
func (s *Store) ListCrons(ctx context.Context) ([]*cron.Entry, error) {
	iter, err := s.prefixIter([]byte(prefixCron))
	if err != nil {
		return nil, err
	}
	defer func() { _ = iter.Close() }()

	var entries []*cron.Entry
	for ok := iter.First(); ok; ok = iter.Next() {
		var entry cron.Entry
		if err := decodeJSON(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("conveyor/pebble: list crons: %w", err)
		}
		entries = append(entries, &entry)
	}

	sort.Slice(entries, func(i, k int) bool {
		return entries[i].Name < entries[k].Name
	})
	return entries, nil
}

// AcquireCronLock attempts to take the entry's distributed lock for ttl.
// The lock is granted when free, expired, or already held by the caller.
func (s *Store) AcquireCronLock(ctx context.Context, entryID id.CronID, workerID id.WorkerID, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry cron.Entry
	if err := s.getJSON(cronKey(entryID.String()), &entry, conveyor.ErrCronNotFound); err != nil {
		return false, err
	}

	now := time.Now().UTC()
	if entry.LockedBy != "" && entry.LockedBy != workerID.String() {
		if entry.LockedUntil != nil && entry.LockedUntil.After(now) {
			return false, nil
		}
	}

	until := now.Add(ttl)
	entry.LockedBy = workerID.String()
	entry.LockedUntil = &until
	if err := s.putCronLocked(&entry); err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseCronLock releases the lock if workerID holds it.
func (s *Store) ReleaseCronLock(ctx context.Context, entryID id.CronID, workerID id.WorkerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry cron.Entry
	if err := s.getJSON(cronKey(entryID.String()), &entry, conveyor.ErrCronNotFound); err != nil {
		return err
	}
	if entry.LockedBy != workerID.String() {
		return nil
	}

	entry.LockedBy = ""
	entry.LockedUntil = nil
	return s.putCronLocked(&entry)
}

// UpdateCronLastRun records when the entry last fired.
func (s *Store) UpdateCronLastRun(ctx context.Context, entryID id.CronID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry cron.Entry
	if err := s.getJSON(cronKey(entryID.String()), &entry, conveyor.ErrCronNotFound); err != nil {
		return err
	}

	entry.LastRunAt = &at
	entry.UpdatedAt = time.Now().UTC()
	return s.putCronLocked(&entry)
}

// UpdateCronEntry persists changes to an existing cron entry.
func (s *Store) UpdateCronEntry(ctx context.Context, entry *cron.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(cronKey(entry.ID.String())); err != nil {
		if errors.Is(err, pebbledb.ErrNotFound) {
			return conveyor.ErrCronNotFound
		}
		return fmt.Errorf("conveyor/pebble: update cron: %w", err)
	}

	entry.UpdatedAt = time.Now().UTC()
	return s.putCronLocked(entry)
}

// DeleteCron removes a cron entry and its name index.
func (s *Store) DeleteCron(ctx context.Context, entryID id.CronID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry cron.Entry
	if err := s.getJSON(cronKey(entryID.String()), &entry, conveyor.ErrCronNotFound); err != nil {
		return err
	}

	b := s.db.NewBatch()
	_ = b.Delete(cronKey(entryID.String()), nil) //nolint:errcheck // batch writes only fail on commit
	_ = b.Delete(cronNameKey(entry.Name), nil)   //nolint:errcheck // batch writes only fail on commit
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: delete cron: %w", err)
	}
	return nil
}

// putCronLocked writes a cron entry. Must be called with s.mu held.
func (s *Store) putCronLocked(entry *cron.Entry) error {
	b := s.db.NewBatch()
	if err := setJSON(b, cronKey(entry.ID.String()), entry); err != nil {
		return err
	}
	if err := s.commit(b); err != nil {
		return fmt.Errorf("conveyor/pebble: put cron: %w", err)
	}
	return nil
}
