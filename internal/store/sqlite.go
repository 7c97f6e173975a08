// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides contact cache with expiry and approval queue persistence

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/leadmachine/prospector/internal/directory"
)

// DefaultCacheExpiry is the contact cache expiry window used when none is configured.
const DefaultCacheExpiry = 7 * 24 * time.Hour

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db          *sql.DB
	cacheExpiry time.Duration
	logger      *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed. cacheExpiry controls how long
// cached contact sets stay live; zero or negative means DefaultCacheExpiry.
func NewSQLiteStore(path string, cacheExpiry time.Duration) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if cacheExpiry <= 0 {
		cacheExpiry = DefaultCacheExpiry
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each pooled connection to ":memory:" would get its own database,
	// so pin the pool to a single connection for in-memory paths.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:          db,
		cacheExpiry: cacheExpiry,
		logger:      logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path, "cache_expiry", cacheExpiry)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS company_cache (
			domain     TEXT PRIMARY KEY,
			contacts_json TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_domain_cache
			ON company_cache(domain, fetched_at);

		CREATE TABLE IF NOT EXISTS approval_queue (
			id                   TEXT PRIMARY KEY,
			company              TEXT NOT NULL,
			domain               TEXT NOT NULL,
			signal_summary       TEXT NOT NULL,
			contact_id           TEXT NOT NULL,
			contact_name         TEXT NOT NULL,
			contact_title        TEXT,
			contact_email        TEXT,
			personalized_subject TEXT NOT NULL,
			personalized_email   TEXT NOT NULL,
			i18n_signals         TEXT NOT NULL,
			slack_message_ts     TEXT,
			status               TEXT NOT NULL DEFAULT 'pending',
			created_at           TEXT NOT NULL,
			updated_at           TEXT NOT NULL,

			CHECK (status IN ('pending', 'approved', 'skipped', 'rejected'))
		);

		CREATE INDEX IF NOT EXISTS idx_approval_status
			ON approval_queue(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// LookupCachedContacts returns the cached contact set for a domain if present
// and unexpired. An expired entry is purged before ErrCacheMiss is reported.
func (s *SQLiteStore) LookupCachedContacts(ctx context.Context, domain string) ([]directory.Contact, error) {
	query := `SELECT contacts_json, fetched_at FROM company_cache WHERE domain = ?`

	var contactsJSON, fetchedAtStr string
	err := s.db.QueryRowContext(ctx, query, domain).Scan(&contactsJSON, &fetchedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("querying contact cache: %w", err)
	}

	fetchedAt, err := time.Parse(time.RFC3339, fetchedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing fetched_at: %w", err)
	}

	if time.Since(fetchedAt) > s.cacheExpiry {
		// Lazy purge, then report a miss
		if _, err := s.db.ExecContext(ctx, `DELETE FROM company_cache WHERE domain = ?`, domain); err != nil {
			return nil, fmt.Errorf("purging expired cache entry: %w", err)
		}
		s.logger.Debug("purged expired cache entry", "domain", domain)
		return nil, ErrCacheMiss
	}

	var contacts []directory.Contact
	if err := json.Unmarshal([]byte(contactsJSON), &contacts); err != nil {
		return nil, fmt.Errorf("decoding cached contacts: %w", err)
	}

	s.logger.Debug("cache hit", "domain", domain, "contacts", len(contacts))
	return contacts, nil
}

// StoreContacts upserts the contact set for a domain, replacing any prior
// entry and resetting the fetch timestamp to now.
func (s *SQLiteStore) StoreContacts(ctx context.Context, domain string, contacts []directory.Contact) error {
	contactsJSON, err := json.Marshal(contacts)
	if err != nil {
		return fmt.Errorf("encoding contacts: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO company_cache (domain, contacts_json, fetched_at)
		VALUES (?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query, domain, string(contactsJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("caching contacts: %w", err)
	}

	s.logger.Debug("cached contacts", "domain", domain, "contacts", len(contacts))
	return nil
}

// CreateRequest inserts a new approval request.
// Returns ErrDuplicateRequest if the identifier already exists.
func (s *SQLiteStore) CreateRequest(ctx context.Context, req *ApprovalRequest) error {
	query := `
		INSERT INTO approval_queue (
			id, company, domain, signal_summary, contact_id, contact_name,
			contact_title, contact_email, personalized_subject, personalized_email,
			i18n_signals, slack_message_ts, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC().Format(time.RFC3339)
	status := req.Status
	if status == "" {
		status = StatusPending
	}

	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.Company,
		req.Domain,
		req.SignalSummary,
		req.ContactID,
		req.ContactName,
		nullString(req.ContactTitle),
		nullString(req.ContactEmail),
		req.Subject,
		req.Body,
		req.SignalContext,
		nullString(req.SlackMessageTS),
		string(status),
		now,
		now,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateRequest
		}
		return fmt.Errorf("inserting approval request: %w", err)
	}

	s.logger.Debug("created approval request", "id", req.ID, "company", req.Company)
	return nil
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const requestColumns = `
	id, company, domain, signal_summary, contact_id, contact_name,
	contact_title, contact_email, personalized_subject, personalized_email,
	i18n_signals, slack_message_ts, status, created_at, updated_at
`

// scanRequest scans a single approval queue row.
func scanRequest(scan func(dest ...any) error) (*ApprovalRequest, error) {
	var req ApprovalRequest
	var contactTitle, contactEmail, messageTS sql.NullString
	var status, createdAtStr, updatedAtStr string

	err := scan(
		&req.ID,
		&req.Company,
		&req.Domain,
		&req.SignalSummary,
		&req.ContactID,
		&req.ContactName,
		&contactTitle,
		&contactEmail,
		&req.Subject,
		&req.Body,
		&req.SignalContext,
		&messageTS,
		&status,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return nil, err
	}

	req.ContactTitle = contactTitle.String
	req.ContactEmail = contactEmail.String
	req.SlackMessageTS = messageTS.String
	req.Status = Status(status)

	req.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	req.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &req, nil
}

// GetRequest retrieves an approval request by ID.
// Returns ErrNotFound if the request doesn't exist.
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_queue WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	req, err := scanRequest(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying approval request: %w", err)
	}
	return req, nil
}

// UpdateStatus updates the status of an approval request. A non-empty
// messageTS sets the card correlation token; an empty one never clears a
// token that has already been set. Returns ErrNotFound if no such request.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status Status, messageTS string) error {
	var result sql.Result
	var err error

	now := time.Now().UTC().Format(time.RFC3339)
	if messageTS != "" {
		result, err = s.db.ExecContext(ctx, `
			UPDATE approval_queue
			SET status = ?, slack_message_ts = ?, updated_at = ?
			WHERE id = ?
		`, string(status), messageTS, now, id)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE approval_queue
			SET status = ?, updated_at = ?
			WHERE id = ?
		`, string(status), now, id)
	}
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated status", "id", id, "status", status)
	return nil
}

// TransitionStatus atomically moves a request from pending to the given
// status. The conditional update serializes concurrent deliveries of the
// same interaction: exactly one caller wins. Only tokened records may leave
// pending. Returns ErrAlreadyProcessed when the record exists but is already
// terminal, ErrNotPublished when it is pending without a correlation token,
// ErrNotFound when absent.
func (s *SQLiteStore) TransitionStatus(ctx context.Context, id string, to Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE approval_queue
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND slack_message_ts != ''
	`, string(to), time.Now().UTC().Format(time.RFC3339), id, string(StatusPending))
	if err != nil {
		return fmt.Errorf("transitioning status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 1 {
		s.logger.Debug("transitioned status", "id", id, "to", to)
		return nil
	}

	// No row claimed: the record is gone, already left pending, or was
	// never published.
	var current string
	var messageTS sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT status, slack_message_ts FROM approval_queue WHERE id = ?`, id).Scan(&current, &messageTS)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking current status: %w", err)
	}
	if Status(current) == StatusPending && messageTS.String == "" {
		return ErrNotPublished
	}
	return ErrAlreadyProcessed
}

// UpdateDraft overwrites the draft subject and body for a request.
// Returns ErrNotFound if no such request.
func (s *SQLiteStore) UpdateDraft(ctx context.Context, id, subject, body string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE approval_queue
		SET personalized_subject = ?, personalized_email = ?, updated_at = ?
		WHERE id = ?
	`, subject, body, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating draft: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated draft", "id", id)
	return nil
}

// ListPending retrieves all pending approval requests, newest first.
// This includes orphaned records that never received a correlation token.
func (s *SQLiteStore) ListPending(ctx context.Context) ([]*ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + `
		FROM approval_queue
		WHERE status = ?
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, string(StatusPending))
	if err != nil {
		return nil, fmt.Errorf("querying pending requests: %w", err)
	}
	defer rows.Close()

	var requests []*ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning approval request row: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating approval request rows: %w", err)
	}

	return requests, nil
}
