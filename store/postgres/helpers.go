package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/conveyor/id"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// nilIfEmpty maps an empty string to nil so nullable TEXT columns stay
// NULL instead of holding "".
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// idOrNil maps a nil ID to a NULL column value.
func idOrNil(v id.ID) *string {
	if v.IsNil() {
		return nil
	}
	s := v.String()
	return &s
}

// refsToStrings converts parent job IDs to their string form for a
// TEXT[] column.
func refsToStrings(refs []id.JobID) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.String()
	}
	return out
}

// stringsToRefs parses a TEXT[] column back into parent job IDs.
func stringsToRefs(raw []string) ([]id.JobID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	refs := make([]id.JobID, len(raw))
	for i, s := range raw {
		parsed, err := id.ParseJobID(s)
		if err != nil {
			return nil, err
		}
		refs[i] = parsed
	}
	return refs, nil
}
