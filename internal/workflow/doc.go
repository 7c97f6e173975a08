// Package workflow is the approval pipeline core. It turns inbound i18n
// signals into pending approval requests (contact resolution, draft
// generation, card publish) and applies reviewer decisions to them
// (approve commits the lead to the CRM, skip settles the record without
// side effects).
//
// Statuses move monotonically from pending to exactly one terminal state.
// The approve path claims the record with a conditional transition before
// any CRM call, so a decision delivered twice commits at most once.
package workflow
