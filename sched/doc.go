// Package sched contains the background promotion loop that moves due
// delayed jobs into the waiting state. The engine runs one promoter on
// the leader node; followers rely on the claim path treating due delayed
// jobs as ready.
package sched
