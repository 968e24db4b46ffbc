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
	"github.com/xraph/conveyor/cluster"
	"github.com/xraph/conveyor/id"
)

// RegisterWorker adds a worker to the cluster registry. Re-registering
// an existing worker overwrites its record.
func (s *Store) RegisterWorker(ctx context.Context, w *cluster.Worker) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, workerKey(w.ID.String()), workerToMap(w))
	pipe.SAdd(ctx, workerIDsKey, w.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: register worker: %w", err)
	}
	return nil
}

// DeregisterWorker removes a worker from the registry. A leader gives up
// leadership on the way out.
func (s *Store) DeregisterWorker(ctx context.Context, workerID id.WorkerID) error {
	leader, err := s.client.Get(ctx, leaderKey).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("conveyor/redis: deregister worker: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, workerKey(workerID.String()))
	pipe.SRem(ctx, workerIDsKey, workerID.String())
	if leader == workerID.String() {
		pipe.Del(ctx, leaderKey)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: deregister worker: %w", err)
	}
	return nil
}

// HeartbeatWorker updates a worker's last-seen timestamp.
func (s *Store) HeartbeatWorker(ctx context.Context, workerID id.WorkerID) error {
	key := workerKey(workerID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: heartbeat worker: %w", err)
	}
	if exists == 0 {
		return conveyor.ErrWorkerNotFound
	}
	err = s.client.HSet(ctx, key, "last_seen", time.Now().UTC().Format(time.RFC3339Nano)).Err()
	if err != nil {
		return fmt.Errorf("conveyor/redis: heartbeat worker: %w", err)
	}
	return nil
}

// ListWorkers returns all registered workers sorted by ID.
func (s *Store) ListWorkers(ctx context.Context) ([]*cluster.Worker, error) {
	workers, err := s.allWorkers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(workers, func(i, k int) bool {
		return workers[i].ID.String() < workers[k].ID.String()
	})
	return workers, nil
}

// ReapDeadWorkers returns workers whose last heartbeat is older than the
// threshold.
func (s *Store) ReapDeadWorkers(ctx context.Context, threshold time.Duration) ([]*cluster.Worker, error) {
	workers, err := s.allWorkers(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-threshold)
	var dead []*cluster.Worker
	for _, w := range workers {
		if w.LastSeen.Before(cutoff) {
			dead = append(dead, w)
		}
	}
	return dead, nil
}

// AcquireLeadership attempts to become cluster leader via SETNX on the
// leader key. An existing hold by the same worker counts as acquired and
// is refreshed.
func (s *Store) AcquireLeadership(ctx context.Context, workerID id.WorkerID, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, leaderKey, workerID.String(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("conveyor/redis: acquire leadership: %w", err)
	}
	if !ok {
		current, getErr := s.client.Get(ctx, leaderKey).Result()
		if getErr != nil && !errors.Is(getErr, goredis.Nil) {
			return false, fmt.Errorf("conveyor/redis: acquire leadership: %w", getErr)
		}
		if current != workerID.String() {
			return false, nil
		}
		if expErr := s.client.Expire(ctx, leaderKey, ttl).Err(); expErr != nil {
			return false, fmt.Errorf("conveyor/redis: acquire leadership: %w", expErr)
		}
	}

	until := time.Now().UTC().Add(ttl)
	err = s.client.HSet(ctx, workerKey(workerID.String()),
		"is_leader", "1",
		"leader_until", until.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return false, fmt.Errorf("conveyor/redis: acquire leadership: %w", err)
	}
	return true, nil
}

// renewLeaderScript extends the leader key TTL only while workerID still
// holds it.
var renewLeaderScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// RenewLeadership extends the hold if workerID is still leader.
func (s *Store) RenewLeadership(ctx context.Context, workerID id.WorkerID, ttl time.Duration) (bool, error) {
	result, err := renewLeaderScript.Run(ctx, s.client,
		[]string{leaderKey},
		workerID.String(),
		strconv.FormatInt(ttl.Milliseconds(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("conveyor/redis: renew leadership: %w", err)
	}
	if result == 0 {
		return false, nil
	}

	until := time.Now().UTC().Add(ttl)
	err = s.client.HSet(ctx, workerKey(workerID.String()),
		"is_leader", "1",
		"leader_until", until.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return false, fmt.Errorf("conveyor/redis: renew leadership: %w", err)
	}
	return true, nil
}

// GetLeader returns the current cluster leader, or nil if none.
func (s *Store) GetLeader(ctx context.Context) (*cluster.Worker, error) {
	leader, err := s.client.Get(ctx, leaderKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("conveyor/redis: get leader: %w", err)
	}

	vals, err := s.client.HGetAll(ctx, workerKey(leader)).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: get leader: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return mapToWorker(vals)
}

// ── helpers ──

func (s *Store) allWorkers(ctx context.Context) ([]*cluster.Worker, error) {
	ids, err := s.client.SMembers(ctx, workerIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: list workers: %w", err)
	}

	workers := make([]*cluster.Worker, 0, len(ids))
	for _, wID := range ids {
		vals, getErr := s.client.HGetAll(ctx, workerKey(wID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		w, mapErr := mapToWorker(vals)
		if mapErr != nil {
			continue
		}
		workers = append(workers, w)
	}
	return workers, nil
}

func workerToMap(w *cluster.Worker) map[string]interface{} {
	m := map[string]interface{}{
		"id":          w.ID.String(),
		"hostname":    w.Hostname,
		"queues":      marshalJSON(w.Queues),
		"concurrency": strconv.Itoa(w.Concurrency),
		"state":       string(w.State),
		"is_leader":   boolToStr(w.IsLeader),
		"last_seen":   w.LastSeen.Format(time.RFC3339Nano),
		"metadata":    marshalJSON(w.Metadata),
		"created_at":  w.CreatedAt.Format(time.RFC3339Nano),
	}
	if w.LeaderUntil != nil {
		m["leader_until"] = w.LeaderUntil.Format(time.RFC3339Nano)
	} else {
		m["leader_until"] = ""
	}
	return m
}

func mapToWorker(m map[string]string) (*cluster.Worker, error) {
	wID, err := id.ParseWorkerID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: parse worker id: %w", err)
	}

	concurrency, _ := strconv.Atoi(m["concurrency"])              //nolint:errcheck // best-effort parse from trusted Redis data
	lastSeen, _ := time.Parse(time.RFC3339Nano, m["last_seen"])   //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	w := &cluster.Worker{
		ID:          wID,
		Hostname:    m["hostname"],
		Queues:      unmarshalStrings(m["queues"]),
		Concurrency: concurrency,
		State:       cluster.WorkerState(m["state"]),
		IsLeader:    m["is_leader"] == "1",
		LastSeen:    lastSeen,
		Metadata:    unmarshalMap(m["metadata"]),
		CreatedAt:   createdAt,
	}

	if v := m["leader_until"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		w.LeaderUntil = &t
	}

	return w, nil
}
