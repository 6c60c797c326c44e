// Package store provides SQLite-backed storage for hostcat's domain catalog.
//
// The store holds three tables:
//   - Categories: unique text labels ("ads", "news/tech")
//   - Domains: hostname text mapped to exactly one category
//   - Loads: one record per committed bulk load
//
// # Invariants
//
// Global domain uniqueness:
//   - UNIQUE(domain) on the domains table
//   - A domain keeps the category it was first registered under; inserting it
//     under another category fails with a constraint error
//     (see IsUniqueViolation)
//
// Initialized gate:
//   - Conn and every listing method return ErrNotInitialized until Init has
//     applied the schema, and again after Cleanup
//
// # Database Configuration
//
//   - One open connection: SQLite serializes writers, and an in-memory
//     database lives only as long as its connection
//   - WAL mode for file databases
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Schema creation (sql/create.sql) and full reset (sql/delete.sql) each run
// in a single transaction.
package store
