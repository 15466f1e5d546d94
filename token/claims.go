package token

import "time"

// Claims is the identity carried in a VocaCRM access token. It is always
// derived from the live access token and never stored on its own.
type Claims struct {
	SubjectID       string         `json:"subjectId"`                 // sub, or providerId on older tokens
	DisplayName     string         `json:"displayName"`               // name, falling back to username
	Email           string         `json:"email,omitempty"`           // Contact email
	Phone           string         `json:"phone,omitempty"`           // Contact phone
	Role            string         `json:"role"`                      // USER or ADMIN
	IsSystemAdmin   bool           `json:"isSystemAdmin"`             // Only true when the claim is literally true
	DefaultTenantID string         `json:"defaultTenantId,omitempty"` // defaultBusinessPlaceId
	ExpiresAt       int64          `json:"exp"`                       // Expiry in epoch seconds
	IssuedAt        int64          `json:"iat,omitempty"`             // Issued at in epoch seconds
	Raw             map[string]any `json:"-"`                         // Every claim as decoded
}

// Expiry returns the exp claim as a time.
func (c *Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}
