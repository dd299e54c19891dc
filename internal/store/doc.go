// Package store defines the persistence interfaces of the extraction
// subsystem: manifest lookups scoped to a user's projects and the durable
// job history ledger. The interfaces keep orchestration code independent
// of the PostgreSQL implementation in internal/platform/postgres.
package store
