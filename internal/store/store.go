// ABOUTME: Store interface and data types for prospector persistence
// ABOUTME: Defines ApprovalRequest, Status and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"

	"github.com/leadmachine/prospector/internal/directory"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateRequest is returned when trying to create an approval request
// whose identifier already exists
var ErrDuplicateRequest = errors.New("approval request already exists")

// ErrCacheMiss is returned when no live cached contact set exists for a domain
var ErrCacheMiss = errors.New("cache miss")

// ErrAlreadyProcessed is returned when a status transition is attempted on a
// record that has already reached a terminal state
var ErrAlreadyProcessed = errors.New("request already processed")

// ErrNotPublished is returned when a status transition is attempted on a
// pending record that never received a correlation token. No card means no
// legitimate decision path.
var ErrNotPublished = errors.New("request not published")

// Status is the lifecycle state of an approval request.
type Status string

// Approval request states. StatusPending is the initial state; the rest are
// terminal and accept no further transitions.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusSkipped  Status = "skipped"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusSkipped || s == StatusRejected
}

// ApprovalRequest is the durable record tracking one lead through human
// review. The contact fields are denormalized at creation time; later
// directory changes do not affect a pending request. Records are never
// hard-deleted, they remain as an audit trail.
type ApprovalRequest struct {
	ID             string
	Company        string
	Domain         string
	SignalSummary  string
	ContactID      string
	ContactName    string
	ContactTitle   string
	ContactEmail   string
	Subject        string
	Body           string
	SignalContext  string
	SlackMessageTS string // correlation token for the published card, empty until publish
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store defines the interface for contact cache and approval queue persistence.
// All writes are atomic per call and update the record's UpdatedAt timestamp.
type Store interface {
	// Contact cache
	LookupCachedContacts(ctx context.Context, domain string) ([]directory.Contact, error)
	StoreContacts(ctx context.Context, domain string, contacts []directory.Contact) error

	// Approval queue
	CreateRequest(ctx context.Context, req *ApprovalRequest) error
	GetRequest(ctx context.Context, id string) (*ApprovalRequest, error)
	UpdateStatus(ctx context.Context, id string, status Status, messageTS string) error
	TransitionStatus(ctx context.Context, id string, to Status) error
	UpdateDraft(ctx context.Context, id, subject, body string) error
	ListPending(ctx context.Context) ([]*ApprovalRequest, error)

	// Close releases any resources held by the store
	Close() error
}
