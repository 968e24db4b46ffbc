// Package pebble implements the store on an embedded Pebble database,
// giving a single process durable queues without an external server.
//
// Records are stored as JSON under type-prefixed keys. Ordering is
// encoded into index keys with big-endian fixed-width fields, so a
// plain forward iteration over the ready index yields jobs in dispatch
// order (priority descending, insertion sequence ascending); the delay
// and lease indexes are ordered by timestamp the same way. All writes
// go through batches committed against the WAL, with a small group
// commit interval by default.
//
// The database belongs to one process: readiness wake-ups use an
// in-process channel rather than a network primitive.
//
// Usage:
//
//	store, err := pebble.Open("/var/lib/conveyor")
//	if err != nil { ... }
//	defer store.Close()
//
//	cv, err := conveyor.New(conveyor.WithStore(store))
package pebble
