package config

import "time"

// Placeholder values shipped in the sample .env. A provider still holding its
// placeholder is treated as unconfigured.
const (
	GooglePlaceholderClientID = "your-google-client-id.apps.googleusercontent.com"
	KakaoPlaceholderClientID  = "your-kakao-javascript-key"
	ApplePlaceholderClientID  = "your-apple-service-id"
)

type OAuthConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleIssuer() string
	GetGoogleRedirectURI() string
	GetKakaoClientID() string
	GetKakaoClientSecret() string
	GetKakaoIssuer() string
	GetKakaoRedirectURI() string
	GetAppleClientID() string
	GetAppleIssuer() string
	GetAppleRedirectURI() string
	GetAuthTimeout() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (OAuth) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (OAuth) GetGoogleIssuer() string {
	return GetEnv("GOOGLE_ISSUER", "https://accounts.google.com")
}

// GetGoogleRedirectURI defaults to a loopback address on an ephemeral port,
// which Google accepts for installed applications.
func (OAuth) GetGoogleRedirectURI() string {
	return GetEnv("GOOGLE_REDIRECT_URI", "http://127.0.0.1:0/oauth/google/callback")
}

func (OAuth) GetKakaoClientID() string {
	return GetEnv("KAKAO_CLIENT_ID", "")
}

func (OAuth) GetKakaoClientSecret() string {
	return GetEnv("KAKAO_CLIENT_SECRET", "")
}

func (OAuth) GetKakaoIssuer() string {
	return GetEnv("KAKAO_ISSUER", "https://kauth.kakao.com")
}

// GetKakaoRedirectURI must match a redirect URI registered in the Kakao
// developer console, so its port is fixed.
func (OAuth) GetKakaoRedirectURI() string {
	return GetEnv("KAKAO_REDIRECT_URI", "http://127.0.0.1:9877/oauth/kakao/callback")
}

func (OAuth) GetAppleClientID() string {
	return GetEnv("APPLE_CLIENT_ID", "")
}

func (OAuth) GetAppleIssuer() string {
	return GetEnv("APPLE_ISSUER", "https://appleid.apple.com")
}

func (OAuth) GetAppleRedirectURI() string {
	return GetEnv("APPLE_REDIRECT_URI", "")
}

func (OAuth) GetAuthTimeout() time.Duration {
	return GetDurationEnv("OAUTH_TIMEOUT", 30*time.Second)
}
