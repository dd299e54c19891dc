// Package domain contains the core entities of the extraction subsystem:
// manifests and their recognition results, groups, and the durable job
// history ledger entries. It is independent of any storage or transport
// concern.
package domain
