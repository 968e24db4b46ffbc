// Package redis implements store.Store using Redis for high-throughput
// workloads. Jobs are stored as Hashes with Sorted Set indexes: a ready
// set per queue ordered by (priority, sequence), a global delay set
// ordered by ReadyAt, and a global active set ordered by lease expiry.
// Events use Streams and claim wake-ups use Pub/Sub.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
