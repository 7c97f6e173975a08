// ABOUTME: Draft generator contract, prompt construction, and output parsing
// ABOUTME: Parses SUBJECT:/BODY: markers with graceful fallback for unstructured output

package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/leadmachine/prospector/internal/directory"
	"github.com/leadmachine/prospector/internal/signal"
)

// ErrGenerationFailed is returned when the text backend is unreachable or
// produced output that cannot be salvaged even by fallback parsing.
var ErrGenerationFailed = errors.New("draft generation failed")

// subjectMaxLen caps the fallback subject taken from the first output line.
const subjectMaxLen = 50

// Draft is a generated outreach email.
type Draft struct {
	Subject string
	Body    string
}

// Generator produces a personalized outreach draft for a signal and contact.
// Implementations are nondeterministic; callers should treat output as opaque
// beyond the Draft contract.
type Generator interface {
	Generate(ctx context.Context, payload signal.Payload, contact directory.Contact) (Draft, error)
}

// buildPrompt renders the generation prompt for a signal/contact pair.
func buildPrompt(payload signal.Payload, contact directory.Contact) string {
	languages := "Not specified"
	if len(payload.Languages) > 0 {
		languages = strings.Join(payload.Languages, ", ")
	}

	orgName := contact.OrganizationName
	if orgName == "" {
		orgName = payload.Company
	}

	var urlLine string
	if payload.URL != "" {
		urlLine = fmt.Sprintf("COMMIT/PR URL: %s\n", payload.URL)
	}

	return fmt.Sprintf(`You are a sales development representative for a localization/internationalization platform.

Generate a personalized cold email based on the following i18n signal detected at the prospect's company:

COMPANY: %s
DOMAIN: %s
SIGNAL TYPE: %s
SIGNAL SUMMARY: %s
LANGUAGES DETECTED: %s
%s
CONTACT INFO:
- Name: %s
- Title: %s
- Company: %s

REQUIREMENTS:
1. Subject line must be compelling and under 50 characters
2. Use dynamic variables: {{first_name}} for greeting, {{company}} in body, {{sender_first_name}} for signature
3. NEVER use {{first_name}} in the subject line (triggers spam filters)
4. Reference the specific i18n activity you detected
5. Keep the email under 150 words
6. End with a soft CTA (question, not a demand)
7. Be conversational, not salesy
8. Don't mention that you "detected" or "noticed" their activity - instead, frame it as industry awareness

OUTPUT FORMAT:
SUBJECT: [your subject line here]
BODY:
[your email body here]`,
		payload.Company,
		payload.Domain,
		payload.SignalType,
		payload.SignalSummary,
		languages,
		urlLine,
		contact.DisplayName(),
		orDefault(contact.Title, "Unknown"),
		orgName,
	)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// parseResponse extracts subject and body from the backend output.
// If the SUBJECT:/BODY: markers are absent, it degrades gracefully: the
// subject falls back to the first line truncated to 50 characters and the
// body to the raw output. Only an entirely empty response is an error.
func parseResponse(response string) (Draft, error) {
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return Draft{}, fmt.Errorf("%w: empty response", ErrGenerationFailed)
	}

	lines := strings.Split(trimmed, "\n")

	var subject string
	var bodyLines []string
	inBody := false

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "SUBJECT:"):
			subject = strings.TrimSpace(strings.TrimPrefix(line, "SUBJECT:"))
		case strings.HasPrefix(line, "BODY:"):
			inBody = true
		case inBody:
			bodyLines = append(bodyLines, line)
		}
	}

	body := strings.TrimSpace(strings.Join(bodyLines, "\n"))

	if subject == "" {
		subject = truncateRunes(lines[0], subjectMaxLen)
	}
	if body == "" {
		body = trimmed
	}

	return Draft{Subject: subject, Body: body}, nil
}

// truncateRunes shortens s to at most n characters. Truncating by bytes
// would split a multi-byte rune at the boundary and produce invalid UTF-8.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
