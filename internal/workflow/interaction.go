// ABOUTME: Interaction handling: verified decision events dispatched by action
// ABOUTME: Approve claims the record before any CRM call so the commit happens at most once

package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/leadmachine/prospector/internal/dedupe"
	"github.com/leadmachine/prospector/internal/directory"
	"github.com/leadmachine/prospector/internal/notify"
	"github.com/leadmachine/prospector/internal/store"
)

// Custom field names set on the CRM contact at commit time.
const (
	fieldSubject = "personalized_subject"
	fieldBody    = "personalized_email_1"
	fieldSignals = "i18n_signals"
)

// Interaction is a decision event from the review channel. Verified must be
// set by the transport after signature verification; the workflow refuses
// unverified events.
type Interaction struct {
	Action    string
	RequestID string
	ChannelID string
	MessageTS string
	UserID    string
	Verified  bool
}

// HandleInteraction applies a reviewer's decision to an approval request.
// Duplicate deliveries and decisions on already-settled records return
// store.ErrAlreadyProcessed.
func (w *Workflow) HandleInteraction(ctx context.Context, in Interaction) error {
	if !in.Verified {
		return ErrUnverified
	}

	switch in.Action {
	case notify.ActionApprove, notify.ActionSkip:
	case notify.ActionEdit, notify.ActionRegenerate:
		return fmt.Errorf("%w: %s", ErrNotImplemented, in.Action)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, in.Action)
	}

	// Only state-changing actions enter the replay filter; edit and
	// regenerate answer the same way on every delivery.
	if w.replays != nil && w.replays.CheckAndMark(dedupe.Key(in.Action, in.RequestID, in.MessageTS)) {
		w.logger.Info("suppressed redelivered interaction",
			"action", in.Action, "request_id", in.RequestID)
		return store.ErrAlreadyProcessed
	}

	if in.Action == notify.ActionApprove {
		return w.approve(ctx, in)
	}
	return w.skip(ctx, in)
}

// approve claims the record, commits the contact to the CRM, and enrolls it
// in the outreach sequence. The claim is the atomicity point: a concurrent
// duplicate loses the conditional update and never reaches the CRM.
func (w *Workflow) approve(ctx context.Context, in Interaction) error {
	req, err := w.store.GetRequest(ctx, in.RequestID)
	if err != nil {
		return err
	}

	if err := w.store.TransitionStatus(ctx, in.RequestID, store.StatusApproved); err != nil {
		return err
	}

	firstName, lastName := splitName(req.ContactName)
	contactID, err := w.crm.CreateContact(ctx, directory.CreateContactParams{
		Email:            req.ContactEmail,
		FirstName:        firstName,
		LastName:         lastName,
		OrganizationName: req.Company,
		Title:            req.ContactTitle,
		CustomFields: map[string]string{
			fieldSubject: req.Subject,
			fieldBody:    req.Body,
			fieldSignals: req.SignalContext,
		},
	})
	if err != nil {
		// The claim stands; statuses never roll back. Surface the failed
		// commit so an operator can retry it.
		w.logger.Error("crm contact creation failed after claim",
			"request_id", req.ID, "error", err)
		return &CommitError{RequestID: req.ID, Err: err}
	}

	var warn error
	if contactID != "" {
		if err := w.crm.AddToSequence(ctx, contactID, ""); err != nil {
			w.logger.Warn("sequence enrollment failed",
				"request_id", req.ID, "contact_id", contactID, "error", err)
			warn = &EnrollWarning{RequestID: req.ID, ContactID: contactID, Err: err}
		}
	}

	req.Status = store.StatusApproved
	if err := w.notifier.UpdateCardApproved(ctx, in.ChannelID, in.MessageTS, req); err != nil {
		w.logger.Warn("updating approval card failed", "request_id", req.ID, "error", err)
	}

	w.logger.Info("lead approved and committed",
		"request_id", req.ID, "contact_id", contactID, "approved_by", in.UserID)
	return warn
}

// skip claims the record as skipped. No CRM calls are made.
func (w *Workflow) skip(ctx context.Context, in Interaction) error {
	req, err := w.store.GetRequest(ctx, in.RequestID)
	if err != nil {
		return err
	}

	if err := w.store.TransitionStatus(ctx, in.RequestID, store.StatusSkipped); err != nil {
		return err
	}

	req.Status = store.StatusSkipped
	if err := w.notifier.UpdateCardSkipped(ctx, in.ChannelID, in.MessageTS, req); err != nil {
		w.logger.Warn("updating approval card failed", "request_id", req.ID, "error", err)
	}

	w.logger.Info("lead skipped", "request_id", req.ID, "skipped_by", in.UserID)
	return nil
}

// splitName divides a display name into first name (first token) and last
// name (everything else).
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "Unknown", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
