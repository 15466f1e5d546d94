package identity

import (
	"context"
	"errors"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/vocacrm/vocacrm-go/internal/config"
	"github.com/vocacrm/vocacrm-go/internal/messages"
	"golang.org/x/oauth2"
)

// GoogleAdapter first tries a silent sign-in with the account the browser is
// already signed in to and returns its ID token. When Google needs the user
// to interact, it falls back to the consent flow and returns the access
// token instead.
type GoogleAdapter struct {
	*base
}

var _ Adapter = (*GoogleAdapter)(nil)

func NewGoogle(cfg ProviderConfig, opts ...Option) *GoogleAdapter {
	return &GoogleAdapter{base: newBase(Google, cfg, config.GooglePlaceholderClientID, opts)}
}

func (a *GoogleAdapter) Authenticate(ctx context.Context) (*Result, error) {
	return a.run(ctx, a.authenticate)
}

func (a *GoogleAdapter) authenticate(ctx context.Context) (*Result, error) {
	s, err := a.sdk(ctx)
	if err != nil {
		return nil, err
	}

	res, err := a.silent(ctx, s)
	if err == nil {
		return res, nil
	}
	if !isSilentFailure(err) {
		return nil, a.asError(err)
	}
	a.logger.Debug().Err(err).Msg("silent sign-in not possible, asking for consent")
	return a.consent(ctx, s)
}

func (a *GoogleAdapter) oauthConfig(s *sdk, scopes ...string) oauth2.Config {
	return oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		Endpoint:     s.provider.Endpoint(),
		RedirectURL:  a.cfg.RedirectURI,
		Scopes:       scopes,
	}
}

func (a *GoogleAdapter) silent(ctx context.Context, s *sdk) (*Result, error) {
	auth, err := a.authorize(ctx, a.oauthConfig(s, oidc.ScopeOpenID, "email"),
		oauth2.SetAuthURLParam(paramPrompt, promptNone))
	if err != nil {
		return nil, err
	}
	raw := idTokenFrom(auth.token)
	if raw == "" {
		return nil, a.fail(CodeAuthFailed, messages.AuthFailed, errors.New("no id token in token response"))
	}
	if err := a.verifyIDToken(ctx, s, raw, auth.nonce); err != nil {
		return nil, err
	}
	return a.result(raw), nil
}

func (a *GoogleAdapter) consent(ctx context.Context, s *sdk) (*Result, error) {
	auth, err := a.authorize(ctx, a.oauthConfig(s, oidc.ScopeOpenID, "email", "profile"),
		oauth2.SetAuthURLParam(paramPrompt, promptSelectConsent))
	if err != nil {
		return nil, a.asError(err)
	}
	if auth.token == nil || auth.token.AccessToken == "" {
		return nil, a.fail(CodeAuthFailed, messages.AuthFailed, errors.New("no access token in token response"))
	}
	return a.result(auth.token.AccessToken), nil
}
