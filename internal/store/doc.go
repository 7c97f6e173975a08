// Package store provides persistent storage for the prospector using SQLite.
//
// # Data Models
//
//   - ApprovalRequest: one lead moving through human review, with the
//     contact and draft denormalized at creation time
//   - Status: pending (initial), approved/skipped/rejected (terminal)
//
// Two logical tables back the pipeline:
//
//   - company_cache: cached directory search results keyed by domain,
//     with lazy expiry (default seven days)
//   - approval_queue: approval requests keyed by id, with a status index
//     for efficient pending-list queries
//
// # Concurrency
//
// All writes are single-statement atomic. TransitionStatus is the
// at-most-once claim primitive: a conditional update from pending means
// two concurrent deliveries of the same interaction cannot both observe
// pending, so downstream side effects run exactly once.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested request does not exist
//   - ErrDuplicateRequest: request id already exists
//   - ErrCacheMiss: no live cached contact set for the domain
//   - ErrAlreadyProcessed: transition attempted on a terminal record
//   - ErrNotPublished: transition attempted on a record with no correlation token
//
// All methods accept context.Context for cancellation support.
//
// Use NewSQLiteStore(":memory:", 0) for tests.
package store
