package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/cron"
	"github.com/xraph/conveyor/id"
)

// RegisterCron persists a new cron entry. The name set arbitrates
// duplicates: SADD returning 0 means another entry owns the name.
func (s *Store) RegisterCron(ctx context.Context, entry *cron.Entry) error {
	added, err := s.client.SAdd(ctx, cronNamesKey, entry.Name).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: register cron name: %w", err)
	}
	if added == 0 {
		return conveyor.ErrDuplicateCron
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, cronKey(entry.ID.String()), cronToMap(entry))
	pipe.SAdd(ctx, cronIDsKey, entry.ID.String())
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: register cron: %w", err)
	}
	return nil
}

// GetCron retrieves a cron entry by ID.
func (s *Store) GetCron(ctx context.Context, entryID id.CronID) (*cron.Entry, error) {
	vals, err := s.client.HGetAll(ctx, cronKey(entryID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: get cron: %w", err)
	}
	if len(vals) == 0 {
		return nil, conveyor.ErrCronNotFound
	}
	return mapToCron(vals)
}

// ListCrons returns all cron entries sorted by name.
func (s *Store) ListCrons(ctx context.Context) ([]*cron.Entry, error) {
	ids, err := s.client.SMembers(ctx, cronIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: list crons: %w", err)
	}

	entries := make([]*cron.Entry, 0, len(ids))
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, cronKey(eID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		entry, mapErr := mapToCron(vals)
		if mapErr != nil {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, k int) bool {
		return entries[i].Name < entries[k].Name
	})
	return entries, nil
}

// cronLockScript grants the lock when it is free, expired, or already
// held by the caller. Returns 1 when acquired.
var cronLockScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
local by = redis.call('HGET', KEYS[1], 'locked_by')
local until_str = redis.call('HGET', KEYS[1], 'locked_until')
local now = tonumber(ARGV[3])
if by and by ~= '' and by ~= ARGV[1] then
	if until_str and until_str ~= '' and tonumber(until_str) > now then
		return 0
	end
end
redis.call('HSET', KEYS[1], 'locked_by', ARGV[1], 'locked_until', ARGV[2])
return 1
`)

// AcquireCronLock attempts to take the entry's distributed lock for ttl.
func (s *Store) AcquireCronLock(ctx context.Context, entryID id.CronID, workerID id.WorkerID, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	result, err := cronLockScript.Run(ctx, s.client,
		[]string{cronKey(entryID.String())},
		workerID.String(),
		strconv.FormatInt(now.Add(ttl).UnixMilli(), 10),
		strconv.FormatInt(now.UnixMilli(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("conveyor/redis: acquire cron lock: %w", err)
	}
	if result == -1 {
		return false, conveyor.ErrCronNotFound
	}
	return result == 1, nil
}

// ReleaseCronLock releases the lock if workerID holds it.
func (s *Store) ReleaseCronLock(ctx context.Context, entryID id.CronID, workerID id.WorkerID) error {
	key := cronKey(entryID.String())
	by, err := s.client.HGet(ctx, key, "locked_by").Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return conveyor.ErrCronNotFound
		}
		return fmt.Errorf("conveyor/redis: release cron lock: %w", err)
	}
	if by != workerID.String() {
		return nil
	}
	if err := s.client.HSet(ctx, key, "locked_by", "", "locked_until", "").Err(); err != nil {
		return fmt.Errorf("conveyor/redis: release cron lock: %w", err)
	}
	return nil
}

// UpdateCronLastRun records when the entry last fired.
func (s *Store) UpdateCronLastRun(ctx context.Context, entryID id.CronID, at time.Time) error {
	key := cronKey(entryID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: update cron last run: %w", err)
	}
	if exists == 0 {
		return conveyor.ErrCronNotFound
	}
	err = s.client.HSet(ctx, key,
		"last_run_at", at.Format(time.RFC3339Nano),
		"updated_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("conveyor/redis: update cron last run: %w", err)
	}
	return nil
}

// UpdateCronEntry persists changes to an existing cron entry.
func (s *Store) UpdateCronEntry(ctx context.Context, entry *cron.Entry) error {
	key := cronKey(entry.ID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: update cron: %w", err)
	}
	if exists == 0 {
		return conveyor.ErrCronNotFound
	}

	fields := cronToMap(entry)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("conveyor/redis: update cron: %w", err)
	}
	return nil
}

// DeleteCron removes a cron entry and its name reservation.
func (s *Store) DeleteCron(ctx context.Context, entryID id.CronID) error {
	entry, err := s.GetCron(ctx, entryID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, cronKey(entryID.String()))
	pipe.SRem(ctx, cronIDsKey, entryID.String())
	pipe.SRem(ctx, cronNamesKey, entry.Name)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: delete cron: %w", err)
	}
	return nil
}

// ── helpers ──

func cronToMap(e *cron.Entry) map[string]interface{} {
	m := map[string]interface{}{
		"id":           e.ID.String(),
		"name":         e.Name,
		"schedule":     e.Schedule,
		"job_name":     e.JobName,
		"queue":        e.Queue,
		"priority":     strconv.Itoa(e.Priority),
		"max_attempts": strconv.Itoa(e.MaxAttempts),
		"timeout":      strconv.FormatInt(int64(e.Timeout), 10),
		"payload":      string(e.Payload),
		"locked_by":    e.LockedBy,
		"enabled":      boolToStr(e.Enabled),
		"created_at":   e.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   e.UpdatedAt.Format(time.RFC3339Nano),
	}
	if e.LastRunAt != nil {
		m["last_run_at"] = e.LastRunAt.Format(time.RFC3339Nano)
	} else {
		m["last_run_at"] = ""
	}
	if e.NextRunAt != nil {
		m["next_run_at"] = e.NextRunAt.Format(time.RFC3339Nano)
	} else {
		m["next_run_at"] = ""
	}
	if e.LockedUntil != nil {
		m["locked_until"] = strconv.FormatInt(e.LockedUntil.UnixMilli(), 10)
	} else {
		m["locked_until"] = ""
	}
	return m
}

func mapToCron(m map[string]string) (*cron.Entry, error) {
	eID, err := id.ParseCronID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: parse cron id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])                    //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])             //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64)          //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	entry := &cron.Entry{
		Entity: conveyor.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:          eID,
		Name:        m["name"],
		Schedule:    m["schedule"],
		JobName:     m["job_name"],
		Queue:       m["queue"],
		Priority:    priority,
		MaxAttempts: maxAttempts,
		Timeout:     time.Duration(timeout),
		LockedBy:    m["locked_by"],
		Enabled:     m["enabled"] == "1",
	}

	if v := m["payload"]; v != "" {
		entry.Payload = []byte(v)
	}
	if v := m["last_run_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		entry.LastRunAt = &t
	}
	if v := m["next_run_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		entry.NextRunAt = &t
	}
	if v := m["locked_until"]; v != "" {
		ms, _ := strconv.ParseInt(v, 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data
		t := time.UnixMilli(ms).UTC()
		entry.LockedUntil = &t
	}

	return entry, nil
}
