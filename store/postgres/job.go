package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/conveyor"
	"github.com/xraph/conveyor/id"
	"github.com/xraph/conveyor/job"
)

// jobColumns is the canonical column order shared by every job query.
const jobColumns = `
	id, name, queue, payload, state, priority, seq,
	max_attempts, attempts_made, stall_count, last_error, result,
	lease_token, worker_id, lease_expires_at,
	ready_at, parent_refs, cancel_requested,
	timeout, completed_at, created_at, updated_at`

// CreateJob persists a new job and assigns its insertion sequence.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conveyor_jobs (
			id, name, queue, payload, state, priority,
			max_attempts, attempts_made, stall_count, last_error, result,
			lease_token, worker_id, lease_expires_at,
			ready_at, parent_refs, cancel_requested,
			timeout, completed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17,
			$18, $19, $20, $21
		)
		RETURNING seq`,
		j.ID.String(), j.Name, j.Queue, j.Payload, string(j.State), j.Priority,
		j.MaxAttempts, j.AttemptsMade, j.StallCount, j.LastError, j.Result,
		idOrNil(j.LeaseToken), idOrNil(j.WorkerID), j.LeaseExpiresAt,
		j.ReadyAt, refsToStrings(j.ParentRefs), j.CancelRequested,
		j.Timeout.Nanoseconds(), j.CompletedAt, j.CreatedAt, j.UpdatedAt,
	).Scan(&j.Sequence)
	if err != nil {
		if isDuplicateKey(err) {
			return conveyor.ErrJobAlreadyExists
		}
		return fmt.Errorf("conveyor/postgres: create job: %w", err)
	}

	if j.State == job.StateWaiting {
		s.notifyReady(ctx, j.Queue)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM conveyor_jobs WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, conveyor.ErrJobNotFound
		}
		return nil, fmt.Errorf("conveyor/postgres: get job: %w", err)
	}
	return j, nil
}

// UpdateJob persists changes to an existing job unconditionally.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conveyor_jobs SET
			name = $2, queue = $3, payload = $4, state = $5, priority = $6,
			max_attempts = $7, attempts_made = $8, stall_count = $9,
			last_error = $10, result = $11,
			lease_token = $12, worker_id = $13, lease_expires_at = $14,
			ready_at = $15, parent_refs = $16, cancel_requested = $17,
			timeout = $18, completed_at = $19, updated_at = NOW()
		WHERE id = $1`,
		j.ID.String(), j.Name, j.Queue, j.Payload, string(j.State), j.Priority,
		j.MaxAttempts, j.AttemptsMade, j.StallCount,
		j.LastError, j.Result,
		idOrNil(j.LeaseToken), idOrNil(j.WorkerID), j.LeaseExpiresAt,
		j.ReadyAt, refsToStrings(j.ParentRefs), j.CancelRequested,
		j.Timeout.Nanoseconds(), j.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("conveyor/postgres: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conveyor.ErrJobNotFound
	}

	if j.State == job.StateWaiting {
		s.notifyReady(ctx, j.Queue)
	}
	return nil
}

// CASJob persists j only if the stored job matches fromState and
// fromToken. The token check runs first: a stale token is a lease error
// regardless of what state the job has since moved to.
func (s *Store) CASJob(ctx context.Context, j *job.Job, fromState job.State, fromToken id.LeaseToken) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("conveyor/postgres: begin cas: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		storedState string
		storedToken *string
	)
	err = tx.QueryRow(ctx,
		`SELECT state, lease_token FROM conveyor_jobs WHERE id = $1 FOR UPDATE`,
		j.ID.String(),
	).Scan(&storedState, &storedToken)
	if err != nil {
		if isNoRows(err) {
			return conveyor.ErrJobNotFound
		}
		return fmt.Errorf("conveyor/postgres: cas read: %w", err)
	}

	token := ""
	if storedToken != nil {
		token = *storedToken
	}
	if token != fromToken.String() {
		return conveyor.ErrInvalidLease
	}
	if storedState != string(fromState) {
		return conveyor.ErrInvalidState
	}
	if j.State != fromState && !job.CanTransition(fromState, j.State) {
		return conveyor.ErrInvalidState
	}

	_, err = tx.Exec(ctx, `
		UPDATE conveyor_jobs SET
			name = $2, queue = $3, payload = $4, state = $5, priority = $6,
			max_attempts = $7, attempts_made = $8, stall_count = $9,
			last_error = $10, result = $11,
			lease_token = $12, worker_id = $13, lease_expires_at = $14,
			ready_at = $15, parent_refs = $16, cancel_requested = $17,
			timeout = $18, completed_at = $19, updated_at = NOW()
		WHERE id = $1`,
		j.ID.String(), j.Name, j.Queue, j.Payload, string(j.State), j.Priority,
		j.MaxAttempts, j.AttemptsMade, j.StallCount,
		j.LastError, j.Result,
		idOrNil(j.LeaseToken), idOrNil(j.WorkerID), j.LeaseExpiresAt,
		j.ReadyAt, refsToStrings(j.ParentRefs), j.CancelRequested,
		j.Timeout.Nanoseconds(), j.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("conveyor/postgres: cas write: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("conveyor/postgres: cas commit: %w", err)
	}

	// Completion can unblock dependents, so it wakes waiters too.
	if j.State == job.StateWaiting || j.State == job.StateCompleted {
		s.notifyReady(ctx, j.Queue)
	}
	return nil
}

// ClaimNextReady atomically claims the best ready job in the given queues.
// SKIP LOCKED keeps concurrent claimants from blocking on each other;
// cancel-requested jobs reached in ready order are deleted, not handed out.
func (s *Store) ClaimNextReady(ctx context.Context, queues []string, claim job.Claim) (*job.Job, error) {
	now := claim.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("conveyor/postgres: begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for {
		// Due delayed jobs count as if promoted. Parent gating: every
		// listed parent must exist and be completed.
		row := tx.QueryRow(ctx, `
			SELECT `+jobColumns+`
			FROM conveyor_jobs j
			WHERE j.state IN ('waiting', 'delayed')
			  AND j.ready_at <= $1
			  AND (cardinality($2::text[]) = 0 OR j.queue = ANY($2))
			  AND NOT EXISTS (
				SELECT 1 FROM unnest(j.parent_refs) AS pid
				LEFT JOIN conveyor_jobs p ON p.id = pid
				WHERE p.id IS NULL OR p.state <> 'completed'
			  )
			ORDER BY j.priority DESC, j.seq ASC
			FOR UPDATE OF j SKIP LOCKED
			LIMIT 1`,
			now, queues,
		)

		j, scanErr := scanJob(row)
		if scanErr != nil {
			if isNoRows(scanErr) {
				if err = tx.Commit(ctx); err != nil {
					return nil, fmt.Errorf("conveyor/postgres: claim commit: %w", err)
				}
				return nil, nil
			}
			return nil, fmt.Errorf("conveyor/postgres: claim select: %w", scanErr)
		}

		if j.CancelRequested {
			if _, delErr := tx.Exec(ctx,
				`DELETE FROM conveyor_jobs WHERE id = $1`, j.ID.String(),
			); delErr != nil {
				return nil, fmt.Errorf("conveyor/postgres: claim discard: %w", delErr)
			}
			continue
		}

		until := claim.LeaseUntil
		_, err = tx.Exec(ctx, `
			UPDATE conveyor_jobs SET
				state = 'active', lease_token = $2, worker_id = $3,
				lease_expires_at = $4, updated_at = $5
			WHERE id = $1`,
			j.ID.String(), claim.Token.String(), claim.WorkerID.String(),
			until, now,
		)
		if err != nil {
			return nil, fmt.Errorf("conveyor/postgres: claim stamp: %w", err)
		}

		if err = tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("conveyor/postgres: claim commit: %w", err)
		}

		j.State = job.StateActive
		j.LeaseToken = claim.Token
		j.WorkerID = claim.WorkerID
		j.LeaseExpiresAt = &until
		j.UpdatedAt = now
		return j, nil
	}
}

// PromoteDueJobs moves due delayed jobs to waiting.
func (s *Store) PromoteDueJobs(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conveyor_jobs
		SET state = 'waiting', updated_at = $2
		WHERE state = 'delayed' AND ready_at <= $1`,
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("conveyor/postgres: promote due jobs: %w", err)
	}

	n := int(tag.RowsAffected())
	if n > 0 {
		s.notifyReady(ctx, "")
	}
	return n, nil
}

// ExpiredLeaseJobs returns active jobs whose lease expired before now.
func (s *Store) ExpiredLeaseJobs(ctx context.Context, now time.Time) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM conveyor_jobs
		WHERE state = 'active' AND lease_expires_at < $1
		ORDER BY seq ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("conveyor/postgres: expired lease jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// DependentsOf returns non-terminal jobs that list jobID as a parent.
func (s *Store) DependentsOf(ctx context.Context, jobID id.JobID) ([]*job.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM conveyor_jobs
		WHERE $1 = ANY(parent_refs)
		  AND state NOT IN ('completed', 'dead')
		ORDER BY seq ASC`,
		jobID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("conveyor/postgres: dependents of: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conveyor_jobs WHERE id = $1`, jobID.String())
	if err != nil {
		return fmt.Errorf("conveyor/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conveyor.ErrJobNotFound
	}
	return nil
}

// ListJobsByState returns jobs matching the given state.
func (s *Store) ListJobsByState(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM conveyor_jobs WHERE state = $1`
	args := []interface{}{string(state)}
	argIdx := 2

	if opts.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, opts.Queue)
		argIdx++
	}

	query += " ORDER BY seq ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conveyor/postgres: list jobs by state: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountJobs returns the number of jobs matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM conveyor_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, opts.Queue)
		argIdx++
	}
	if opts.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, string(opts.State))
	}

	var count int64
	err := s.pool.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("conveyor/postgres: count jobs: %w", err)
	}
	return count, nil
}

// WaitReady blocks on a LISTEN connection until a readiness notification
// arrives, the timeout elapses, or ctx is done. Any notification counts
// as a wake-up: it only means a claim is worth attempting.
func (s *Store) WaitReady(ctx context.Context, _ []string, timeout time.Duration) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("conveyor/postgres: acquire listen conn: %w", err)
	}
	defer func() {
		// Drop the subscription before the connection returns to the pool.
		_, _ = conn.Exec(context.Background(), `UNLISTEN *`)
		conn.Release()
	}()

	if _, err = conn.Exec(ctx, `LISTEN `+readyChannel); err != nil {
		return false, fmt.Errorf("conveyor/postgres: listen: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err = conn.Conn().WaitForNotification(waitCtx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// Timeout without a notification.
		return false, nil
	}
	return true, nil
}

// scanJob scans a single job row.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		idStr     string
		stateStr  string
		tokenStr  *string
		workerStr *string
		parentRaw []string
		timeoutNs int64
	)
	err := row.Scan(
		&idStr, &j.Name, &j.Queue, &j.Payload, &stateStr, &j.Priority, &j.Sequence,
		&j.MaxAttempts, &j.AttemptsMade, &j.StallCount, &j.LastError, &j.Result,
		&tokenStr, &workerStr, &j.LeaseExpiresAt,
		&j.ReadyAt, &parentRaw, &j.CancelRequested,
		&timeoutNs, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.State = job.State(stateStr)
	j.Timeout = time.Duration(timeoutNs)

	parsedID, parseErr := id.ParseJobID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("conveyor/postgres: parse job id %q: %w", idStr, parseErr)
	}
	j.ID = parsedID

	if tokenStr != nil {
		parsedToken, tokenErr := id.ParseLeaseToken(*tokenStr)
		if tokenErr != nil {
			return nil, fmt.Errorf("conveyor/postgres: parse lease token %q: %w", *tokenStr, tokenErr)
		}
		j.LeaseToken = parsedToken
	}
	if workerStr != nil {
		parsedWorker, workerErr := id.ParseWorkerID(*workerStr)
		if workerErr != nil {
			return nil, fmt.Errorf("conveyor/postgres: parse worker id %q: %w", *workerStr, workerErr)
		}
		j.WorkerID = parsedWorker
	}

	refs, refErr := stringsToRefs(parentRaw)
	if refErr != nil {
		return nil, fmt.Errorf("conveyor/postgres: parse parent refs: %w", refErr)
	}
	j.ParentRefs = refs

	return &j, nil
}

// collectJobs collects all jobs from query rows.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("conveyor/postgres: scan job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conveyor/postgres: iterate job rows: %w", err)
	}
	return jobs, nil
}
