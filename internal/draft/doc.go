// Package draft generates personalized outreach emails from i18n signals.
//
// A Generator turns a (signal, contact) pair into a subject/body Draft.
// Two backends are provided, Anthropic and Gemini, selected by config.
// Both share one prompt and one parsing contract: the backend is asked
// for SUBJECT: and BODY: markers, and when it fails to produce them the
// parser degrades gracefully rather than failing the request. Only an
// unreachable backend or an empty reply surfaces ErrGenerationFailed.
package draft
