// Package identity signs a user in with a third-party identity provider and
// returns the provider token the VocaCRM backend exchanges for its own
// session.
//
// Each provider runs an OAuth 2.0 authorization-code flow with PKCE through
// the system browser. The authorization response is received by a loopback
// listener on the configured redirect URI. Every failure is reported as an
// *Error carrying one of four codes, so callers can treat all providers the
// same way.
package identity

import (
	"context"
	"strings"
)

type Provider string

const (
	Google Provider = "google"
	Kakao  Provider = "kakao"
	Apple  Provider = "apple"
)

// ID is the normalized provider identifier sent to the backend.
func (p Provider) ID() string {
	return string(p) + ".com"
}

// DisplayName is the name embedded in user facing messages.
func (p Provider) DisplayName() string {
	switch p {
	case Google:
		return "Google"
	case Kakao:
		return "Kakao"
	case Apple:
		return "Apple"
	default:
		return string(p)
	}
}

// ParseProvider accepts both the short form ("kakao") and the normalized
// identifier ("kakao.com").
func ParseProvider(name string) (Provider, bool) {
	p := Provider(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".com"))
	switch p {
	case Google, Kakao, Apple:
		return p, true
	default:
		return p, false
	}
}

// Result is a successful sign-in: the normalized provider id and the token
// the backend verifies with that provider.
type Result struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

type Adapter interface {
	Provider() Provider

	// Authenticate runs the interactive sign-in. Every returned error is an
	// *Error.
	Authenticate(ctx context.Context) (*Result, error)
}
