// ABOUTME: Contact model returned by the people directory
// ABOUTME: Provides display name derivation from partial name fields

package directory

// Contact is a person record returned by the directory search.
// Contacts are immutable once fetched; a fresh search replaces prior
// results rather than mutating them.
type Contact struct {
	ID               string `json:"id"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Name             string `json:"name,omitempty"`
	Title            string `json:"title,omitempty"`
	Email            string `json:"email,omitempty"`
	LinkedinURL      string `json:"linkedin_url,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
}

// DisplayName returns the best human-readable name for the contact.
// Prefers the explicit full name, then first+last, then whichever
// single part exists, then "Unknown".
func (c Contact) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.FirstName != "" && c.LastName != "" {
		return c.FirstName + " " + c.LastName
	}
	if c.FirstName != "" {
		return c.FirstName
	}
	if c.LastName != "" {
		return c.LastName
	}
	return "Unknown"
}
