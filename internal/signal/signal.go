// ABOUTME: Inbound webhook payload schema with strict validation
// ABOUTME: Defines signal types and the signal-context formatter for CRM custom fields

package signal

import (
	"fmt"
	"net/url"
	"strings"
)

// Type enumerates the kinds of i18n activity the scanner reports.
type Type string

// Known signal types. Anything else is rejected at validation time.
const (
	TypeNewLangFile       Type = "NEW_LANG_FILE"
	TypeOpenPR            Type = "OPEN_PR"
	TypeI18NDependency    Type = "I18N_DEPENDENCY"
	TypeLocaleDirectory   Type = "LOCALE_DIRECTORY"
	TypeTranslationConfig Type = "TRANSLATION_CONFIG"
)

// knownTypes is the set of accepted signal types.
var knownTypes = map[Type]bool{
	TypeNewLangFile:       true,
	TypeOpenPR:            true,
	TypeI18NDependency:    true,
	TypeLocaleDirectory:   true,
	TypeTranslationConfig: true,
}

// ValidationError describes a single rejected payload field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Reason)
}

// Payload is an inbound signal describing detected i18n activity at a company.
// Company, Domain, SignalType and SignalSummary are required.
type Payload struct {
	Company       string         `json:"company"`
	Domain        string         `json:"domain"`
	SignalType    Type           `json:"signal_type"`
	SignalSummary string         `json:"signal_summary"`
	Languages     []string       `json:"languages,omitempty"`
	Author        string         `json:"author,omitempty"`
	URL           string         `json:"url,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Validate checks the payload against the schema. It returns a
// *ValidationError naming the first offending field, or nil.
// No processing may happen on a payload that fails validation.
func (p *Payload) Validate() error {
	if strings.TrimSpace(p.Company) == "" {
		return &ValidationError{Field: "company", Reason: "required"}
	}
	if strings.TrimSpace(p.Domain) == "" {
		return &ValidationError{Field: "domain", Reason: "required"}
	}
	if p.SignalType == "" {
		return &ValidationError{Field: "signal_type", Reason: "required"}
	}
	if !knownTypes[p.SignalType] {
		return &ValidationError{Field: "signal_type", Reason: fmt.Sprintf("unknown type %q", p.SignalType)}
	}
	if strings.TrimSpace(p.SignalSummary) == "" {
		return &ValidationError{Field: "signal_summary", Reason: "required"}
	}
	if p.URL != "" {
		u, err := url.Parse(p.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ValidationError{Field: "url", Reason: "must be a valid http(s) URL"}
		}
	}
	return nil
}

// FormatContext renders the signal as the pipe-delimited context string
// stored on the approval request and on the CRM contact's custom field.
func (p *Payload) FormatContext() string {
	parts := []string{
		fmt.Sprintf("Signal: %s", p.SignalType),
		fmt.Sprintf("Summary: %s", p.SignalSummary),
	}

	if len(p.Languages) > 0 {
		parts = append(parts, fmt.Sprintf("Languages: %s", strings.Join(p.Languages, ", ")))
	}
	if p.URL != "" {
		parts = append(parts, fmt.Sprintf("URL: %s", p.URL))
	}
	if p.Author != "" {
		parts = append(parts, fmt.Sprintf("Author: %s", p.Author))
	}

	return strings.Join(parts, " | ")
}
