// ABOUTME: Approval workflow core wiring store, directory, draft, notify and CRM
// ABOUTME: Defines collaborator interfaces, the ranking policy hook, and outcome types

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leadmachine/prospector/internal/directory"
	"github.com/leadmachine/prospector/internal/draft"
	"github.com/leadmachine/prospector/internal/notify"
	"github.com/leadmachine/prospector/internal/store"
)

// Workflow errors
var (
	// ErrUnverified is returned when an interaction arrives without having
	// passed signature verification.
	ErrUnverified = errors.New("interaction not verified")

	// ErrNotImplemented is returned for actions the workflow recognizes but
	// does not support yet (edit, regenerate).
	ErrNotImplemented = errors.New("action not implemented")

	// ErrUnknownAction is returned for action identifiers no card ever carries.
	ErrUnknownAction = errors.New("unknown action")
)

// CommitError reports a CRM contact creation that failed after the approval
// was already claimed. The record stays approved; statuses are monotonic and
// never roll back, so the commit has to be retried manually.
type CommitError struct {
	RequestID string
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("crm commit failed for request %s: %v", e.RequestID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// EnrollWarning reports a sequence enrollment that failed after the CRM
// contact was created. The approval stands and the contact exists; only the
// enrollment needs a retry.
type EnrollWarning struct {
	RequestID string
	ContactID string
	Err       error
}

func (e *EnrollWarning) Error() string {
	return fmt.Sprintf("sequence enrollment failed for contact %s (request %s): %v", e.ContactID, e.RequestID, e.Err)
}

func (e *EnrollWarning) Unwrap() error { return e.Err }

// Directory resolves contacts for a company domain.
type Directory interface {
	SearchPeople(ctx context.Context, domain string, titles []string, page, perPage int) ([]directory.Contact, error)
}

// CRM commits approved leads: creates the contact and enrolls it in the
// outreach sequence.
type CRM interface {
	CreateContact(ctx context.Context, params directory.CreateContactParams) (string, error)
	AddToSequence(ctx context.Context, contactID, sequenceID string) error
}

// ReplayFilter suppresses redelivered interaction events before they reach
// the store. CheckAndMark returns true for a duplicate.
type ReplayFilter interface {
	CheckAndMark(key string) bool
}

// RankPolicy selects the contact to pursue from a non-empty ordered result
// set. The directory owns relevance ordering; the default policy takes the
// first element.
type RankPolicy func(contacts []directory.Contact) directory.Contact

// FirstContact is the default ranking policy.
func FirstContact(contacts []directory.Contact) directory.Contact {
	return contacts[0]
}

// Outcome classifies what HandleSignal did with a signal.
type Outcome string

const (
	OutcomePending Outcome = "pending_approval"
	OutcomeSkipped Outcome = "skipped"
)

// Result describes the disposition of a processed signal. Reason is set only
// for skipped outcomes; RequestID only when a record was created.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// Skip reasons reported by HandleSignal.
const (
	SkipNoContacts = "no_contacts_found"
	SkipNoEmail    = "no_email"
)

// Options carries the optional knobs for a Workflow.
type Options struct {
	Titles  []string     // title keywords for directory search, nil for the directory defaults
	PerPage int          // directory page size, 0 for the directory default
	Rank    RankPolicy   // nil for FirstContact
	Replays ReplayFilter // nil disables replay suppression
}

// Workflow is the approval pipeline orchestrator. All collaborators are
// injected; the workflow holds no transport concerns of its own.
type Workflow struct {
	store     store.Store
	directory Directory
	crm       CRM
	generator draft.Generator
	notifier  notify.Notifier
	replays   ReplayFilter
	rank      RankPolicy
	titles    []string
	perPage   int
	logger    *slog.Logger
}

// New creates a workflow around the given collaborators.
func New(st store.Store, dir Directory, crm CRM, gen draft.Generator, notifier notify.Notifier, opts Options) *Workflow {
	rank := opts.Rank
	if rank == nil {
		rank = FirstContact
	}
	return &Workflow{
		store:     st,
		directory: dir,
		crm:       crm,
		generator: gen,
		notifier:  notifier,
		replays:   opts.Replays,
		rank:      rank,
		titles:    opts.Titles,
		perPage:   opts.PerPage,
		logger:    slog.Default().With("component", "workflow"),
	}
}
