// Package postgres implements the store using pgx/v5 with raw SQL.
// Features: SKIP LOCKED claims, LISTEN/NOTIFY readiness wake-ups,
// TTL-based leader election, embedded SQL migrations.
package postgres
