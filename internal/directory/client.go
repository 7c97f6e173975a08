// ABOUTME: HTTP client for the Apollo-style people directory and CRM API
// ABOUTME: Handles people search, contact creation, and sequence enrollment

package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.apollo.io/v1"

// DefaultTitles are the job-title keywords used when a search does not
// specify its own. They target localization decision makers.
var DefaultTitles = []string{
	"localization",
	"internationalization",
	"i18n",
	"translation",
	"globalization",
	"product",
	"engineering",
	"VP Engineering",
	"Head of Product",
	"CTO",
	"Director of Engineering",
}

// APIError is returned when the directory API responds with a non-200 status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("directory API error: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the directory/CRM API over HTTP.
// The API key is sent in the request body, not a header.
type Client struct {
	baseURL    string
	apiKey     string
	sequenceID string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a directory client. sequenceID is the default outreach
// sequence used by AddToSequence when none is given. If baseURL is empty,
// DefaultBaseURL is used.
func NewClient(baseURL, apiKey, sequenceID string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		sequenceID: sequenceID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "directory"),
	}
}

// request makes an authenticated API call and decodes the JSON response into out.
func (c *Client) request(ctx context.Context, method, endpoint string, body map[string]any, out any) error {
	if body == nil {
		body = map[string]any{}
	}
	body["api_key"] = c.apiKey

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	url := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling directory API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("directory API error", "status", resp.StatusCode, "endpoint", endpoint)
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// searchResponse is the wire shape of a people search result.
type searchResponse struct {
	People []struct {
		ID           string `json:"id"`
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		Name         string `json:"name"`
		Title        string `json:"title"`
		Email        string `json:"email"`
		LinkedinURL  string `json:"linkedin_url"`
		Organization struct {
			Name string `json:"name"`
		} `json:"organization"`
	} `json:"people"`
}

// SearchPeople searches for contacts at a company by domain. The directory
// ranks results; callers should treat the returned order as authoritative.
// If titles is nil, DefaultTitles is used. perPage defaults to 10.
func (c *Client) SearchPeople(ctx context.Context, domain string, titles []string, page, perPage int) ([]Contact, error) {
	if titles == nil {
		titles = DefaultTitles
	}
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 10
	}

	c.logger.Info("searching directory", "domain", domain)

	var result searchResponse
	err := c.request(ctx, http.MethodPost, "mixed_people/search", map[string]any{
		"q_organization_domains": domain,
		"person_titles":          titles,
		"page":                   page,
		"per_page":               perPage,
	}, &result)
	if err != nil {
		return nil, err
	}

	contacts := make([]Contact, 0, len(result.People))
	for _, p := range result.People {
		contacts = append(contacts, Contact{
			ID:               p.ID,
			FirstName:        p.FirstName,
			LastName:         p.LastName,
			Name:             p.Name,
			Title:            p.Title,
			Email:            p.Email,
			LinkedinURL:      p.LinkedinURL,
			OrganizationName: p.Organization.Name,
		})
	}
	return contacts, nil
}

// CreateContactParams holds the fields for a permanent CRM contact.
type CreateContactParams struct {
	Email            string
	FirstName        string
	LastName         string
	OrganizationName string
	Title            string
	CustomFields     map[string]string
}

// contactResponse is the wire shape of contact create/get responses.
type contactResponse struct {
	Contact struct {
		ID               string `json:"id"`
		FirstName        string `json:"first_name"`
		LastName         string `json:"last_name"`
		Name             string `json:"name"`
		Title            string `json:"title"`
		Email            string `json:"email"`
		LinkedinURL      string `json:"linkedin_url"`
		OrganizationName string `json:"organization_name"`
	} `json:"contact"`
}

// CreateContact creates a permanent contact record and returns its ID.
// Custom fields are stored as typed custom fields on the contact.
func (c *Client) CreateContact(ctx context.Context, params CreateContactParams) (string, error) {
	body := map[string]any{
		"email":             params.Email,
		"first_name":        params.FirstName,
		"last_name":         params.LastName,
		"organization_name": params.OrganizationName,
	}
	if params.Title != "" {
		body["title"] = params.Title
	}
	if len(params.CustomFields) > 0 {
		body["typed_custom_fields"] = params.CustomFields
	}

	c.logger.Info("creating CRM contact", "email", params.Email)

	var result contactResponse
	if err := c.request(ctx, http.MethodPost, "contacts", body, &result); err != nil {
		return "", err
	}
	return result.Contact.ID, nil
}

// AddToSequence enrolls a contact in an outreach sequence. An empty
// sequenceID enrolls into the client's default sequence.
func (c *Client) AddToSequence(ctx context.Context, contactID, sequenceID string) error {
	if sequenceID == "" {
		sequenceID = c.sequenceID
	}

	c.logger.Info("adding contact to sequence", "contact_id", contactID, "sequence_id", sequenceID)

	return c.request(ctx, http.MethodPost, "emailer_campaigns/add_contact_ids", map[string]any{
		"contact_ids":         []string{contactID},
		"emailer_campaign_id": sequenceID,
	}, nil)
}

// GetContact retrieves a contact by ID.
func (c *Client) GetContact(ctx context.Context, contactID string) (*Contact, error) {
	var result contactResponse
	if err := c.request(ctx, http.MethodGet, "contacts/"+contactID, nil, &result); err != nil {
		return nil, err
	}
	return &Contact{
		ID:               result.Contact.ID,
		FirstName:        result.Contact.FirstName,
		LastName:         result.Contact.LastName,
		Name:             result.Contact.Name,
		Title:            result.Contact.Title,
		Email:            result.Contact.Email,
		LinkedinURL:      result.Contact.LinkedinURL,
		OrganizationName: result.Contact.OrganizationName,
	}, nil
}
