// Package directory provides the HTTP client for the people directory
// and CRM commit API.
//
// The same upstream service fills both roles: SearchPeople resolves a
// company domain to a ranked list of candidate contacts, while
// CreateContact and AddToSequence commit an approved lead into the CRM
// and its default outreach sequence.
//
// The client does no caching of its own; callers consult the store's
// contact cache before searching. All calls are synchronous with a 30
// second timeout, and non-200 responses surface as *APIError so callers
// can distinguish upstream failures from transport errors.
package directory
