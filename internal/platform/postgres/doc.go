// Package postgres implements the persistence interfaces defined in
// internal/store on PostgreSQL: manifest lookups with project-owner
// visibility scoping and the append-mostly job history ledger. Driver
// errors are mapped to store sentinel errors before they leave the
// package.
package postgres
