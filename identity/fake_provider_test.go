package identity_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/vocacrm/vocacrm-go/identity"
)

const (
	testClientID    = "test-client-id"
	testRedirectURI = "http://127.0.0.1:0/callback"
	testKeyID       = "test-key"
	testAccessToken = "provider-access-token"
)

// fakeProvider is an OpenID provider serving discovery, token and JWKS
// endpoints.
type fakeProvider struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	discoveryHits     atomic.Int32
	discoveryFailures atomic.Int32
	tokenHits         atomic.Int32
	omitIDToken       atomic.Bool

	lock     sync.Mutex
	nonce    string
	idTokens []string
	opened   []url.Values
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &fakeProvider{t: t, key: key}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("POST /token", p.token)
	mux.HandleFunc("GET /jwks", p.jwks)
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) issuer() string {
	return p.server.URL
}

func (p *fakeProvider) config() identity.ProviderConfig {
	return identity.ProviderConfig{
		ClientID:    testClientID,
		Issuer:      p.issuer(),
		RedirectURI: testRedirectURI,
	}
}

func (p *fakeProvider) discovery(w http.ResponseWriter, _ *http.Request) {
	p.discoveryHits.Add(1)
	if p.discoveryFailures.Load() > 0 {
		p.discoveryFailures.Add(-1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]any{
		"issuer":                                p.issuer(),
		"authorization_endpoint":                p.issuer() + "/authorize",
		"token_endpoint":                        p.issuer() + "/token",
		"jwks_uri":                              p.issuer() + "/jwks",
		"response_types_supported":              []string{"code", "code id_token"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *fakeProvider) token(w http.ResponseWriter, r *http.Request) {
	p.tokenHits.Add(1)
	if err := r.ParseForm(); err != nil || r.Form.Get("code") == "" || r.Form.Get("code_verifier") == "" {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
		return
	}
	body := map[string]any{
		"access_token": testAccessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !p.omitIDToken.Load() {
		body["id_token"] = p.idToken(p.currentNonce())
	}
	writeJSON(w, body)
}

func (p *fakeProvider) jwks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKeyID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(p.key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(p.key.E)).Bytes()),
		}},
	})
}

func (p *fakeProvider) idToken(nonce string) string {
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, jwtlib.MapClaims{
		"iss":   p.issuer(),
		"aud":   testClientID,
		"sub":   "provider-user-1",
		"nonce": nonce,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = testKeyID
	signed, err := tok.SignedString(p.key)
	require.NoError(p.t, err)

	p.lock.Lock()
	p.idTokens = append(p.idTokens, signed)
	p.lock.Unlock()
	return signed
}

func (p *fakeProvider) lastIDToken() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.idTokens) == 0 {
		return ""
	}
	return p.idTokens[len(p.idTokens)-1]
}

func (p *fakeProvider) currentNonce() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.nonce
}

func (p *fakeProvider) openedURLs() []url.Values {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]url.Values(nil), p.opened...)
}

// browser answers each authorization request with the parameters returned by
// respond, delivered with GET or, for form_post requests, with POST. The
// request's state is echoed unless respond sets one.
func (p *fakeProvider) browser(respond func(query url.Values) url.Values) identity.Browser {
	return identity.BrowserFunc(func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(p.t, err)
		query := u.Query()

		p.lock.Lock()
		p.nonce = query.Get("nonce")
		p.opened = append(p.opened, query)
		p.lock.Unlock()

		params := respond(query)
		if params.Get("state") == "" {
			params.Set("state", query.Get("state"))
		}

		var resp *http.Response
		if query.Get("response_mode") == "form_post" {
			resp, err = http.PostForm(query.Get("redirect_uri"), params)
		} else {
			resp, err = http.Get(query.Get("redirect_uri") + "?" + params.Encode())
		}
		if err != nil {
			return err
		}
		return resp.Body.Close()
	})
}

// idleBrowser never completes the sign-in.
var idleBrowser = identity.BrowserFunc(func(string) error { return nil })

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func codeResponse(url.Values) url.Values {
	return url.Values{"code": {"auth-code"}}
}

func hasPrompt(query url.Values, prompt string) bool {
	return strings.TrimSpace(query.Get("prompt")) == prompt
}
