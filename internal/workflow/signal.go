// ABOUTME: Inbound signal handling: contact resolution, draft generation, card publish
// ABOUTME: Creates the pending approval record; empty directory results are never cached

package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/leadmachine/prospector/internal/directory"
	"github.com/leadmachine/prospector/internal/signal"
	"github.com/leadmachine/prospector/internal/store"
)

// HandleSignal runs a validated signal through the pipeline: resolve a
// contact, generate a draft, persist a pending record, publish the approval
// card. Skips (no contacts, no email) create no record. If the card publish
// fails the pending record is kept without a correlation token so ListPending
// can surface it for re-publish.
func (w *Workflow) HandleSignal(ctx context.Context, payload signal.Payload) (*Result, error) {
	contacts, err := w.resolveContacts(ctx, payload.Domain)
	if err != nil {
		return nil, fmt.Errorf("resolving contacts for %s: %w", payload.Domain, err)
	}
	if len(contacts) == 0 {
		w.logger.Info("no contacts found, skipping", "company", payload.Company, "domain", payload.Domain)
		return &Result{Outcome: OutcomeSkipped, Reason: SkipNoContacts}, nil
	}

	contact := w.rank(contacts)
	if contact.Email == "" {
		w.logger.Info("selected contact has no email, skipping",
			"company", payload.Company, "contact", contact.DisplayName())
		return &Result{Outcome: OutcomeSkipped, Reason: SkipNoEmail}, nil
	}

	d, err := w.generator.Generate(ctx, payload, contact)
	if err != nil {
		return nil, fmt.Errorf("generating draft: %w", err)
	}

	req := &store.ApprovalRequest{
		ID:            uuid.New().String(),
		Company:       payload.Company,
		Domain:        payload.Domain,
		SignalSummary: payload.SignalSummary,
		ContactID:     contact.ID,
		ContactName:   contact.DisplayName(),
		ContactTitle:  contact.Title,
		ContactEmail:  contact.Email,
		Subject:       d.Subject,
		Body:          d.Body,
		SignalContext: payload.FormatContext(),
		Status:        store.StatusPending,
	}

	if err := w.store.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting approval request: %w", err)
	}

	ts, err := w.notifier.PostApprovalCard(ctx, req)
	if err != nil {
		// Record stays pending without a token; ListPending surfaces it.
		w.logger.Error("publishing approval card failed", "request_id", req.ID, "error", err)
		return nil, fmt.Errorf("publishing approval card: %w", err)
	}

	if err := w.store.UpdateStatus(ctx, req.ID, store.StatusPending, ts); err != nil {
		return nil, fmt.Errorf("recording correlation token: %w", err)
	}

	w.logger.Info("approval request published",
		"request_id", req.ID, "company", payload.Company, "contact", req.ContactName)
	return &Result{Outcome: OutcomePending, RequestID: req.ID}, nil
}

// resolveContacts returns the contact set for a domain, from the cache when a
// live entry exists, otherwise from the directory. Non-empty fresh results are
// cached; empty results are not, so the next signal for the domain retries.
func (w *Workflow) resolveContacts(ctx context.Context, domain string) ([]directory.Contact, error) {
	cached, err := w.store.LookupCachedContacts(ctx, domain)
	if err == nil {
		w.logger.Debug("contact cache hit", "domain", domain, "contacts", len(cached))
		return cached, nil
	}
	if !errors.Is(err, store.ErrCacheMiss) {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	contacts, err := w.directory.SearchPeople(ctx, domain, w.titles, 1, w.perPage)
	if err != nil {
		return nil, fmt.Errorf("directory search: %w", err)
	}

	if len(contacts) > 0 {
		if err := w.store.StoreContacts(ctx, domain, contacts); err != nil {
			// Contacts are already in hand; caching is an optimization.
			w.logger.Warn("caching contacts failed", "domain", domain, "error", err)
		}
	}
	return contacts, nil
}
