package config

import "time"

type SecurityConfig interface {
	GetTokenClockSkew() time.Duration
	GetCredentialKey() string
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetTokenClockSkew is how long before its literal exp an access token is
// already considered expired.
func (Security) GetTokenClockSkew() time.Duration {
	return GetDurationEnv("TOKEN_CLOCK_SKEW", 30*time.Second)
}

// GetCredentialKey returns the secret used to seal the credential file.
// Empty means the file is stored unsealed.
func (Security) GetCredentialKey() string {
	return GetEnv("CREDENTIAL_KEY", "")
}
