// Package redisq implements the work queue port against Redis, mirroring
// the key layout of a BullMQ-style queue: one hash per job plus per-state
// sorted sets, an id counter, and a queue-wide pause flag. Consumers (out
// of process) pop work and maintain the active/terminal sets; this adapter
// enqueues, inspects, cancels, and prunes.
package redisq

import "fmt"

const keyPrefix = "manifold:extraction:"

// jobKey is the hash holding one job's payload and bookkeeping fields.
func jobKey(id string) string {
	return keyPrefix + "job:" + id
}

// stateKey is the sorted set of job ids in one state, scored by the unix
// millisecond timestamp of the transition.
func stateKey(state string) string {
	return fmt.Sprintf("%sstate:%s", keyPrefix, state)
}

// cancelKey holds the cancellation reason for an active job; consumers
// poll it cooperatively.
func cancelKey(id string) string {
	return keyPrefix + "cancel:" + id
}

const (
	idCounterKey = keyPrefix + "id"
	pausedKey    = keyPrefix + "meta:paused"
)
