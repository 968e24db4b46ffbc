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
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
)

// readyScore computes the ready-set score from priority and sequence.
// Lower score claims first: priority is negated so higher priority sorts
// first, and the sequence breaks ties FIFO.
func readyScore(priority int, seq uint64) float64 {
	return float64(-priority)*1e12 + float64(seq)
}

// CreateJob stores the job as a Hash, assigns its insertion sequence, and
// indexes it in the queue's ready set or the delay set.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: create check exists: %w", err)
	}
	if exists > 0 {
		return conveyor.ErrJobAlreadyExists
	}

	seq, err := s.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: create assign seq: %w", err)
	}
	j.Sequence = uint64(seq)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.SAdd(ctx, jobIDsKey, jID)
	pipe.SAdd(ctx, queuesKey, j.Queue)
	switch j.State {
	case job.StateWaiting:
		pipe.ZAdd(ctx, readyKey(j.Queue), goredis.Z{Score: readyScore(j.Priority, j.Sequence), Member: jID})
	case job.StateDelayed:
		pipe.ZAdd(ctx, delayedKey, goredis.Z{Score: float64(j.ReadyAt.UnixMilli()), Member: jID})
	}
	for _, pid := range j.ParentRefs {
		pipe.SAdd(ctx, childrenKey(pid.String()), jID)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: create job: %w", err)
	}

	if j.State == job.StateWaiting {
		s.notifyReady(ctx, j.Queue)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// UpdateJob persists changes to an existing job unconditionally and
// reindexes it.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("conveyor/redis: update job exists: %w", err)
	}
	if exists == 0 {
		return conveyor.ErrJobNotFound
	}

	fields := jobToMap(j)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	s.reindexJob(ctx, pipe, j, jID)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: update job: %w", err)
	}

	if j.State == job.StateWaiting {
		s.notifyReady(ctx, j.Queue)
	}
	return nil
}

// reindexJob queues the sorted-set membership updates for j's new state.
func (s *Store) reindexJob(ctx context.Context, pipe goredis.Pipeliner, j *job.Job, jID string) {
	pipe.ZRem(ctx, readyKey(j.Queue), jID)
	pipe.ZRem(ctx, delayedKey, jID)
	pipe.ZRem(ctx, activeKey, jID)
	switch j.State {
	case job.StateWaiting:
		pipe.ZAdd(ctx, readyKey(j.Queue), goredis.Z{Score: readyScore(j.Priority, j.Sequence), Member: jID})
	case job.StateDelayed:
		pipe.ZAdd(ctx, delayedKey, goredis.Z{Score: float64(j.ReadyAt.UnixMilli()), Member: jID})
	case job.StateActive:
		if j.LeaseExpiresAt != nil {
			pipe.ZAdd(ctx, activeKey, goredis.Z{Score: float64(j.LeaseExpiresAt.UnixMilli()), Member: jID})
		}
	}
}

// casScript compares the stored state and lease token, then applies the
// field writes and index moves atomically. Returns "not_found",
// "bad_lease", "bad_state", or "ok".
//
// KEYS: 1 job hash, 2 ready set, 3 delay set, 4 active set.
// ARGV: 1 expected token, 2 expected state, 3 new state, 4 ready score,
// 5 delay score, 6 active score, 7 job ID, 8 transition-legal flag,
// 9.. field/value pairs.
var casScript = goredis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then return 'not_found' end
local token = redis.call('HGET', KEYS[1], 'lease_token')
if not token then token = '' end
if token ~= ARGV[1] then return 'bad_lease' end
if state ~= ARGV[2] then return 'bad_state' end
if ARGV[8] == '0' then return 'bad_state' end
redis.call('ZREM', KEYS[2], ARGV[7])
redis.call('ZREM', KEYS[3], ARGV[7])
redis.call('ZREM', KEYS[4], ARGV[7])
if ARGV[3] == 'waiting' then
	redis.call('ZADD', KEYS[2], ARGV[4], ARGV[7])
elseif ARGV[3] == 'delayed' then
	redis.call('ZADD', KEYS[3], ARGV[5], ARGV[7])
elseif ARGV[3] == 'active' then
	redis.call('ZADD', KEYS[4], ARGV[6], ARGV[7])
end
for i = 9, #ARGV, 2 do
	redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
return 'ok'
`)

// CASJob persists j only if the stored job matches fromState and
// fromToken. The token check runs first: a stale token is a lease error
// regardless of what state the job has since moved to.
func (s *Store) CASJob(ctx context.Context, j *job.Job, fromState job.State, fromToken id.LeaseToken) error {
	jID := j.ID.String()

	fields := jobToMap(j)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	var activeScore float64
	if j.LeaseExpiresAt != nil {
		activeScore = float64(j.LeaseExpiresAt.UnixMilli())
	}

	legal := "1"
	if j.State != fromState && !job.CanTransition(fromState, j.State) {
		legal = "0"
	}

	argv := []interface{}{
		fromToken.String(),
		string(fromState),
		string(j.State),
		readyScore(j.Priority, j.Sequence),
		float64(j.ReadyAt.UnixMilli()),
		activeScore,
		jID,
		legal,
	}
	for field, value := range fields {
		argv = append(argv, field, value)
	}

	keys := []string{jobKey(jID), readyKey(j.Queue), delayedKey, activeKey}
	result, err := casScript.Run(ctx, s.client, keys, argv...).Text()
	if err != nil {
		return fmt.Errorf("conveyor/redis: cas job: %w", err)
	}

	switch result {
	case "ok":
	case "not_found":
		return conveyor.ErrJobNotFound
	case "bad_lease":
		return conveyor.ErrInvalidLease
	case "bad_state":
		return conveyor.ErrInvalidState
	default:
		return fmt.Errorf("conveyor/redis: cas job: unexpected result %q", result)
	}

	// Completion can unblock dependents, so it wakes waiters too.
	if j.State == job.StateWaiting || j.State == job.StateCompleted {
		s.notifyReady(ctx, j.Queue)
	}
	return nil
}

// parentsCompleted reports whether every parent of j has completed.
func (s *Store) parentsCompleted(ctx context.Context, j *job.Job) (bool, error) {
	for _, pid := range j.ParentRefs {
		state, err := s.client.HGet(ctx, jobKey(pid.String()), "state").Result()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return false, nil
			}
			return false, fmt.Errorf("conveyor/redis: check parent state: %w", err)
		}
		if state != string(job.StateCompleted) {
			return false, nil
		}
	}
	return true, nil
}

// ClaimNextReady atomically claims the best ready job in the given queues.
// ZREM is the claim arbiter: only the caller that removes the member from
// the ready set gets to stamp the lease.
func (s *Store) ClaimNextReady(ctx context.Context, queues []string, claim job.Claim) (*job.Job, error) {
	now := claim.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	// Due delayed jobs count as if promoted.
	if _, err := s.PromoteDueJobs(ctx, now); err != nil {
		return nil, err
	}

	if len(queues) == 0 {
		all, err := s.client.SMembers(ctx, queuesKey).Result()
		if err != nil {
			return nil, fmt.Errorf("conveyor/redis: claim list queues: %w", err)
		}
		sort.Strings(all)
		queues = all
	}

	// Merge the per-queue ready sets into one global order. The ready
	// score already encodes (priority desc, sequence asc), so an
	// ascending sort by score across queues matches the single-queue
	// dispatch order.
	type candidate struct {
		id    string
		queue string
		score float64
	}
	var candidates []candidate
	for _, q := range queues {
		members, err := s.client.ZRangeByScoreWithScores(ctx, readyKey(q), &goredis.ZRangeBy{
			Min: "-inf", Max: "+inf",
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("conveyor/redis: claim scan ready: %w", err)
		}
		for _, z := range members {
			candidates = append(candidates, candidate{
				id:    z.Member.(string),
				queue: q,
				score: z.Score,
			})
		}
	}
	sort.Slice(candidates, func(i, k int) bool { return candidates[i].score < candidates[k].score })

	for _, c := range candidates {
		jID := c.id
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			// Hash gone but still indexed; clean up the stray member.
			if errors.Is(getErr, conveyor.ErrJobNotFound) {
				s.client.ZRem(ctx, readyKey(c.queue), jID)
				continue
			}
			return nil, getErr
		}

		if j.ReadyAt.After(now) {
			continue
		}

		// Cancel-requested jobs reached in ready order are discarded,
		// never handed out.
		if j.CancelRequested {
			won, remErr := s.client.ZRem(ctx, readyKey(c.queue), jID).Result()
			if remErr != nil {
				return nil, fmt.Errorf("conveyor/redis: claim discard: %w", remErr)
			}
			if won > 0 {
				if delErr := s.DeleteJob(ctx, j.ID); delErr != nil && !errors.Is(delErr, conveyor.ErrJobNotFound) {
					return nil, delErr
				}
			}
			continue
		}

		ok, depErr := s.parentsCompleted(ctx, j)
		if depErr != nil {
			return nil, depErr
		}
		if !ok {
			continue
		}

		won, remErr := s.client.ZRem(ctx, readyKey(c.queue), jID).Result()
		if remErr != nil {
			return nil, fmt.Errorf("conveyor/redis: claim zrem: %w", remErr)
		}
		if won == 0 {
			// Another claimant got there first.
			continue
		}

		until := claim.LeaseUntil
		j.State = job.StateActive
		j.LeaseToken = claim.Token
		j.WorkerID = claim.WorkerID
		j.LeaseExpiresAt = &until
		j.UpdatedAt = now

		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, jobKey(jID),
			"state", string(job.StateActive),
			"lease_token", claim.Token.String(),
			"worker_id", claim.WorkerID.String(),
			"lease_expires_at", until.Format(time.RFC3339Nano),
			"updated_at", now.Format(time.RFC3339Nano),
		)
		pipe.ZAdd(ctx, activeKey, goredis.Z{Score: float64(until.UnixMilli()), Member: jID})
		if _, stampErr := pipe.Exec(ctx); stampErr != nil {
			return nil, fmt.Errorf("conveyor/redis: claim stamp: %w", stampErr)
		}
		return j, nil
	}

	return nil, nil
}

// PromoteDueJobs moves due delayed jobs to waiting. ZRANGEBYSCORE yields
// them in (ReadyAt, job ID) order.
func (s *Store) PromoteDueJobs(ctx context.Context, now time.Time) (int, error) {
	due, err := s.client.ZRangeByScore(ctx, delayedKey, &goredis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("conveyor/redis: promote scan: %w", err)
	}

	promoted := 0
	for _, jID := range due {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			if errors.Is(getErr, conveyor.ErrJobNotFound) {
				s.client.ZRem(ctx, delayedKey, jID)
				continue
			}
			return promoted, getErr
		}

		// ZREM is the promotion arbiter against concurrent promoters.
		won, remErr := s.client.ZRem(ctx, delayedKey, jID).Result()
		if remErr != nil {
			return promoted, fmt.Errorf("conveyor/redis: promote zrem: %w", remErr)
		}
		if won == 0 {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, jobKey(jID),
			"state", string(job.StateWaiting),
			"updated_at", now.Format(time.RFC3339Nano),
		)
		pipe.ZAdd(ctx, readyKey(j.Queue), goredis.Z{Score: readyScore(j.Priority, j.Sequence), Member: jID})
		if _, pErr := pipe.Exec(ctx); pErr != nil {
			return promoted, fmt.Errorf("conveyor/redis: promote job: %w", pErr)
		}
		promoted++
	}

	if promoted > 0 {
		s.notifyReady(ctx, "")
	}
	return promoted, nil
}

// ExpiredLeaseJobs returns active jobs whose lease expired before now.
func (s *Store) ExpiredLeaseJobs(ctx context.Context, now time.Time) ([]*job.Job, error) {
	ids, err := s.client.ZRangeByScore(ctx, activeKey, &goredis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatInt(now.UnixMilli()-1, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: expired scan: %w", err)
	}

	var expired []*job.Job
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			if errors.Is(getErr, conveyor.ErrJobNotFound) {
				s.client.ZRem(ctx, activeKey, jID)
				continue
			}
			return nil, getErr
		}
		if j.State != job.StateActive {
			continue
		}
		expired = append(expired, j)
	}

	sort.Slice(expired, func(i, k int) bool {
		return expired[i].Sequence < expired[k].Sequence
	})
	return expired, nil
}

// DependentsOf returns non-terminal jobs that list jobID as a parent.
func (s *Store) DependentsOf(ctx context.Context, jobID id.JobID) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, childrenKey(jobID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: dependents smembers: %w", err)
	}

	var deps []*job.Job
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // dependent since removed
		}
		if j.State.Terminal() {
			continue
		}
		deps = append(deps, j)
	}

	sort.Slice(deps, func(i, k int) bool {
		return deps[i].Sequence < deps[k].Sequence
	})
	return deps, nil
}

// DeleteJob removes a job and all its index memberships.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	key := jobKey(jID)

	j, err := s.getJobByKey(ctx, key)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, jobIDsKey, jID)
	pipe.ZRem(ctx, readyKey(j.Queue), jID)
	pipe.ZRem(ctx, delayedKey, jID)
	pipe.ZRem(ctx, activeKey, jID)
	for _, pid := range j.ParentRefs {
		pipe.SRem(ctx, childrenKey(pid.String()), jID)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("conveyor/redis: delete job: %w", err)
	}
	return nil
}

// ListJobsByState returns jobs matching the given state.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: list jobs smembers: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // skip missing
		}
		if j.State != state {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].Sequence < jobs[k].Sequence
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[opts.Offset:]
	}
	if opts.Limit > 0 && len(jobs) > opts.Limit {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("conveyor/redis: count smembers: %w", err)
	}

	var count int64
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if opts.Queue != "" && j.Queue != opts.Queue {
			continue
		}
		count++
	}
	return count, nil
}

// WaitReady blocks on the ready Pub/Sub channel until a notification
// arrives, the timeout elapses, or ctx is done. Any notification counts
// as a wake-up: it only means a claim is worth attempting.
func (s *Store) WaitReady(ctx context.Context, _ []string, timeout time.Duration) (bool, error) {
	sub := s.client.Subscribe(ctx, readyChannel)
	defer func() { _ = sub.Close() }()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := sub.ReceiveMessage(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Timeout without a notification.
		return false, nil
	}
	return true, nil
}

// ── helpers ──

func jobToMap(j *job.Job) map[string]interface{} {
	m := map[string]interface{}{
		"id":               j.ID.String(),
		"name":             j.Name,
		"queue":            j.Queue,
		"payload":          string(j.Payload),
		"state":            string(j.State),
		"priority":         strconv.Itoa(j.Priority),
		"seq":              strconv.FormatUint(j.Sequence, 10),
		"max_attempts":     strconv.Itoa(j.MaxAttempts),
		"attempts_made":    strconv.Itoa(j.AttemptsMade),
		"stall_count":      strconv.Itoa(j.StallCount),
		"last_error":       j.LastError,
		"result":           string(j.Result),
		"lease_token":      j.LeaseToken.String(),
		"worker_id":        j.WorkerID.String(),
		"ready_at":         j.ReadyAt.Format(time.RFC3339Nano),
		"parent_refs":      marshalJSON(refsToStrings(j.ParentRefs)),
		"cancel_requested": boolToStr(j.CancelRequested),
		"timeout":          strconv.FormatInt(int64(j.Timeout), 10),
		"created_at":       j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":       j.UpdatedAt.Format(time.RFC3339Nano),
	}
	if j.LeaseExpiresAt != nil {
		m["lease_expires_at"] = j.LeaseExpiresAt.Format(time.RFC3339Nano)
	} else {
		m["lease_expires_at"] = ""
	}
	if j.CompletedAt != nil {
		m["completed_at"] = j.CompletedAt.Format(time.RFC3339Nano)
	} else {
		m["completed_at"] = ""
	}
	return m
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, conveyor.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: parse job id: %w", err)
	}

	priority, _ := strconv.Atoi(m["priority"])                //nolint:errcheck // best-effort parse from trusted Redis data
	seq, _ := strconv.ParseUint(m["seq"], 10, 64)             //nolint:errcheck // best-effort parse from trusted Redis data
	maxAttempts, _ := strconv.Atoi(m["max_attempts"])         //nolint:errcheck // best-effort parse from trusted Redis data
	attemptsMade, _ := strconv.Atoi(m["attempts_made"])       //nolint:errcheck // best-effort parse from trusted Redis data
	stallCount, _ := strconv.Atoi(m["stall_count"])           //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64)      //nolint:errcheck // best-effort parse from trusted Redis data
	readyAt, _ := time.Parse(time.RFC3339Nano, m["ready_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	refs, err := stringsToRefs(unmarshalStrings(m["parent_refs"]))
	if err != nil {
		return nil, fmt.Errorf("conveyor/redis: parse parent refs: %w", err)
	}

	j := &job.Job{
		Entity: conveyor.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:              jID,
		Name:            m["name"],
		Queue:           m["queue"],
		Payload:         []byte(m["payload"]),
		State:           job.State(m["state"]),
		Priority:        priority,
		Sequence:        seq,
		MaxAttempts:     maxAttempts,
		AttemptsMade:    attemptsMade,
		StallCount:      stallCount,
		LastError:       m["last_error"],
		ReadyAt:         readyAt,
		ParentRefs:      refs,
		CancelRequested: m["cancel_requested"] == "1",
		Timeout:         time.Duration(timeout),
	}

	if v := m["result"]; v != "" {
		j.Result = []byte(v)
	}
	if v := m["lease_token"]; v != "" {
		j.LeaseToken, _ = id.ParseLeaseToken(v) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["worker_id"]; v != "" {
		j.WorkerID, _ = id.ParseWorkerID(v) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["lease_expires_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.LeaseExpiresAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		j.CompletedAt = &t
	}

	return j, nil
}

// refsToStrings converts parent job IDs to their string form.
func refsToStrings(refs []id.JobID) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}

// stringsToRefs parses parent job ID strings.
func stringsToRefs(raw []string) ([]id.JobID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	refs := make([]id.JobID, len(raw))
	for i, v := range raw {
		parsed, err := id.ParseJobID(v)
		if err != nil {
			return nil, err
		}
		refs[i] = parsed
	}
	return refs, nil
}
