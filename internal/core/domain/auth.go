package domain

import "time"

// APIKey grants a caller access to one tenant's schemas. Only the SHA-256
// hash of the token is ever stored.
type APIKey struct {
	TokenHash string
	TenantID  string
	Name      string
	Active    bool
	CreatedAt time.Time
}
