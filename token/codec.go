package token

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/vocacrm/vocacrm-go/internal/errors"
)

// DefaultClockSkew is subtracted from every expiry so that a token about to
// lapse is refreshed before the server starts rejecting it.
const DefaultClockSkew = 30 * time.Second

const defaultRole = "USER"

// Codec decodes access token claims locally, without contacting the server
// and without verifying the signature. The client never holds the signing key
// and only uses the claims to decide when to refresh and what to display.
type Codec struct {
	skew time.Duration
}

// DefaultCodec uses DefaultClockSkew.
var DefaultCodec = NewCodec(DefaultClockSkew)

// NewCodec returns a codec treating tokens as expired skew before their exp.
// A negative skew is treated as zero.
func NewCodec(skew time.Duration) Codec {
	if skew < 0 {
		skew = 0
	}
	return Codec{skew: skew}
}

func (c Codec) Skew() time.Duration {
	return c.skew
}

// DecodeClaims extracts the claims from the payload segment of accessToken.
func (c Codec) DecodeClaims(accessToken string) (*Claims, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.ErrInvalidToken
	}

	parsed, _, err := jwtlib.NewParser(jwtlib.WithPaddingAllowed()).ParseUnverified(accessToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.ErrInvalidToken
	}

	claims := &Claims{
		SubjectID:       firstString(mapClaims, "sub", "providerId"),
		DisplayName:     firstString(mapClaims, "name", "username"),
		Email:           firstString(mapClaims, "email"),
		Phone:           firstString(mapClaims, "phone"),
		Role:            firstString(mapClaims, "role"),
		DefaultTenantID: firstString(mapClaims, "defaultBusinessPlaceId"),
		Raw:             mapClaims,
	}
	if claims.Role == "" {
		claims.Role = defaultRole
	}
	if admin, ok := mapClaims["isSystemAdmin"].(bool); ok && admin {
		claims.IsSystemAdmin = true
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Unix()
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Unix()
	}

	return claims, nil
}

// IsExpired reports whether accessToken must no longer be used at now, that
// is whether now + skew has reached exp. A token that cannot be decoded, or
// carries no exp, counts as expired.
func (c Codec) IsExpired(accessToken string, now time.Time) bool {
	claims, err := c.DecodeClaims(accessToken)
	if err != nil || claims.ExpiresAt == 0 {
		return true
	}
	return !now.Add(c.skew).Before(claims.Expiry())
}

// DecodeClaims decodes accessToken with DefaultCodec.
func DecodeClaims(accessToken string) (*Claims, error) {
	return DefaultCodec.DecodeClaims(accessToken)
}

// IsExpired checks accessToken with DefaultCodec.
func IsExpired(accessToken string, now time.Time) bool {
	return DefaultCodec.IsExpired(accessToken, now)
}

func firstString(claims jwtlib.MapClaims, names ...string) string {
	for _, name := range names {
		if s, ok := claims[name].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
