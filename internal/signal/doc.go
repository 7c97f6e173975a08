// Package signal defines the inbound webhook payload describing detected
// i18n activity at a company, its strict validation rules, and the
// pipe-delimited context string carried onto the CRM contact.
package signal
