package pebble

import (
	"encoding/binary"
	"time"
)

// Key layout. JSON records live under type prefixes; index keys encode
// their ordering with big-endian fixed-width fields so forward iteration
// visits entries in the right order.
const (
	prefixJob    = "job/"
	prefixCron   = "cron/"
	prefixDLQ    = "dlq/"
	prefixEvent  = "event/"
	prefixWorker = "worker/"

	prefixReadyIdx    = "idx/ready/"    // idx/ready/{queue}/{^prio BE}{seq BE} -> job ID
	prefixDelayIdx    = "idx/delayed/"  // idx/delayed/{ready_at_ms BE}{job ID} -> nil
	prefixActiveIdx   = "idx/active/"   // idx/active/{expires_ms BE}{job ID} -> nil
	prefixChildIdx    = "idx/children/" // idx/children/{parent ID}/{child ID} -> nil
	prefixCronName    = "idx/cronname/" // idx/cronname/{name} -> cron ID
	prefixDLQIdx      = "idx/dlq/"      // idx/dlq/{^failed_at_ms BE}{entry ID} -> nil
	prefixEventStream = "idx/events/"   // idx/events/{name}/{created_ms BE}{event ID} -> nil

	metaSeqKey    = "meta/seq"
	metaLeaderKey = "meta/leader"
)

func jobKey(jobID string) []byte     { return []byte(prefixJob + jobID) }
func cronKey(cronID string) []byte   { return []byte(prefixCron + cronID) }
func dlqKey(entryID string) []byte   { return []byte(prefixDLQ + entryID) }
func eventKey(evtID string) []byte   { return []byte(prefixEvent + evtID) }
func workerKey(wID string) []byte    { return []byte(prefixWorker + wID) }
func cronNameKey(name string) []byte { return []byte(prefixCronName + name) }

// encodePriority maps a signed priority onto uint64 so that byte order
// runs from highest priority to lowest: flip the sign bit to order
// signed values, then complement to reverse.
func encodePriority(priority int) uint64 {
	return ^(uint64(priority) ^ (1 << 63))
}

// readyIdxKey orders a queue's ready jobs by priority descending then
// sequence ascending.
func readyIdxKey(queue string, priority int, seq uint64) []byte {
	prefix := prefixReadyIdx + queue + "/"
	key := make([]byte, len(prefix)+16)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], encodePriority(priority))
	binary.BigEndian.PutUint64(key[len(prefix)+8:], seq)
	return key
}

func readyQueuePrefix(queue string) []byte {
	return []byte(prefixReadyIdx + queue + "/")
}

// delayIdxKey orders delayed jobs by promotion time, job ID breaking ties.
func delayIdxKey(readyAt time.Time, jobID string) []byte {
	return timeIdxKey(prefixDelayIdx, uint64(readyAt.UnixMilli()), jobID)
}

// activeIdxKey orders active jobs by lease expiry.
func activeIdxKey(expiresAt time.Time, jobID string) []byte {
	return timeIdxKey(prefixActiveIdx, uint64(expiresAt.UnixMilli()), jobID)
}

// dlqIdxKey orders dead-letter entries newest first.
func dlqIdxKey(failedAt time.Time, entryID string) []byte {
	return timeIdxKey(prefixDLQIdx, ^uint64(failedAt.UnixMilli()), entryID)
}

// eventStreamKey orders a name's events by creation time.
func eventStreamKey(name string, createdAt time.Time, evtID string) []byte {
	return timeIdxKey(prefixEventStream+name+"/", uint64(createdAt.UnixMilli()), evtID)
}

func timeIdxKey(prefix string, ms uint64, id string) []byte {
	key := make([]byte, len(prefix)+8+len(id))
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], ms)
	copy(key[len(prefix)+8:], id)
	return key
}

func childIdxKey(parentID, childID string) []byte {
	return []byte(prefixChildIdx + parentID + "/" + childID)
}

func childIdxPrefix(parentID string) []byte {
	return []byte(prefixChildIdx + parentID + "/")
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// idFromTimeIdx extracts the trailing ID from a timestamp index key.
func idFromTimeIdx(key []byte, prefix string) string {
	if len(key) < len(prefix)+8 {
		return ""
	}
	return string(key[len(prefix)+8:])
}

// timeFromIdx extracts the big-endian timestamp field from an index key.
func timeFromIdx(key []byte, prefix string) uint64 {
	if len(key) < len(prefix)+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(prefix) : len(prefix)+8])
}
