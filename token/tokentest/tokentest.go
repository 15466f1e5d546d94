// Package tokentest mints VocaCRM style access tokens for tests.
package tokentest

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const signingSecret = "tokentest-secret"

// Mint signs claims with HS256. The signature is irrelevant to the client,
// which never verifies it.
func Mint(t testing.TB, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(signingSecret))
	require.NoError(t, err)
	return signed
}

// AccessToken returns a token for subject expiring at exp, carrying the
// claims the backend puts in every access token.
func AccessToken(t testing.TB, subject string, exp time.Time) string {
	t.Helper()
	return Mint(t, jwtlib.MapClaims{
		"sub":                    subject,
		"username":               "홍길동",
		"email":                  subject + "@example.com",
		"phone":                  "010-1234-5678",
		"defaultBusinessPlaceId": "bp-" + subject,
		"isSystemAdmin":          false,
		"iat":                    time.Now().Unix(),
		"exp":                    exp.Unix(),
		"jti":                    uuid.NewString(),
	})
}

// Valid returns an access token valid for another hour.
func Valid(t testing.TB, subject string) string {
	t.Helper()
	return AccessToken(t, subject, time.Now().Add(time.Hour))
}

// Expired returns an access token that expired a minute ago.
func Expired(t testing.TB, subject string) string {
	t.Helper()
	return AccessToken(t, subject, time.Now().Add(-time.Minute))
}
