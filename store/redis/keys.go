package redis

// Redis key naming conventions for conveyor data.
// All keys are prefixed with "conveyor:" to avoid collisions.

const keyPrefix = "conveyor:"

// ── Job keys ──

// jobKey returns the key for a job entity: conveyor:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// readyKey returns the ready Sorted Set for a queue: conveyor:ready:{name}
// Scored by (priority, sequence) so ZRANGE yields claim order.
func readyKey(queue string) string { return keyPrefix + "ready:" + queue }

// childrenKey returns the Set of jobs gated on a parent:
// conveyor:children:{parentID}
func childrenKey(parentID string) string { return keyPrefix + "children:" + parentID }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// queuesKey is the Set tracking all queue names seen so far.
const queuesKey = keyPrefix + "queues"

// delayedKey is the global delay Sorted Set, scored by ReadyAt (unix ms).
const delayedKey = keyPrefix + "delayed"

// activeKey is the global active-lease Sorted Set, scored by lease
// expiry (unix ms).
const activeKey = keyPrefix + "active"

// seqKey is the INCR counter assigning insertion sequences.
const seqKey = keyPrefix + "seq"

// readyChannel is the Pub/Sub channel for claim wake-ups.
const readyChannel = keyPrefix + "ready"

// ── Cron keys ──

// cronKey returns the key for a cron entry entity: conveyor:cron:{id}
func cronKey(id string) string { return keyPrefix + "cron:" + id }

// cronIDsKey is the Set tracking all cron IDs for enumeration.
const cronIDsKey = keyPrefix + "cron_ids"

// cronNamesKey maps cron names to IDs for duplicate detection.
const cronNamesKey = keyPrefix + "cron_names"

// ── DLQ keys ──

// dlqKey returns the key for a DLQ entry entity: conveyor:dlq:{id}
func dlqKey(id string) string { return keyPrefix + "dlq:" + id }

// dlqIDsKey is the Set tracking all DLQ entry IDs for enumeration.
const dlqIDsKey = keyPrefix + "dlq_ids"

// ── Event keys ──

// eventKey returns the key for an event entity: conveyor:event:{id}
func eventKey(id string) string { return keyPrefix + "event:" + id }

// eventStreamKey returns the Stream key for an event name: conveyor:events:{name}
func eventStreamKey(name string) string { return keyPrefix + "events:" + name }

// ── Cluster keys ──

// workerKey returns the key for a worker entity: conveyor:worker:{id}
func workerKey(id string) string { return keyPrefix + "worker:" + id }

// workerIDsKey is the Set tracking all worker IDs for enumeration.
const workerIDsKey = keyPrefix + "worker_ids"

// leaderKey stores the current leader worker ID.
const leaderKey = keyPrefix + "leader"
