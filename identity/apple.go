package identity

import (
	"context"
	"errors"

	"github.com/vocacrm/vocacrm-go/internal/config"
	"github.com/vocacrm/vocacrm-go/internal/messages"
	"golang.org/x/oauth2"
)

// AppleAdapter signs in with Apple and returns the identity token. Apple
// posts the response to the redirect URI, so that URI must reach this
// process's loopback listener.
type AppleAdapter struct {
	*base
}

var _ Adapter = (*AppleAdapter)(nil)

func NewApple(cfg ProviderConfig, opts ...Option) *AppleAdapter {
	return &AppleAdapter{base: newBase(Apple, cfg, config.ApplePlaceholderClientID, opts)}
}

func (a *AppleAdapter) Authenticate(ctx context.Context) (*Result, error) {
	if a.configured() && a.cfg.RedirectURI == "" {
		return nil, a.configMissing()
	}
	return a.run(ctx, a.authenticate)
}

func (a *AppleAdapter) authenticate(ctx context.Context) (*Result, error) {
	s, err := a.sdk(ctx)
	if err != nil {
		return nil, err
	}

	cfg := oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		Endpoint:     s.provider.Endpoint(),
		RedirectURL:  a.cfg.RedirectURI,
		Scopes:       []string{"name", "email"},
	}
	auth, err := a.authorize(ctx, cfg,
		oauth2.SetAuthURLParam(paramResponseType, "code "+paramIDToken),
		oauth2.SetAuthURLParam(paramResponseMode, string(FormPostResponseMode)),
	)
	if err != nil {
		return nil, a.asError(err)
	}

	raw := auth.callback.IDToken
	if raw == "" {
		raw = idTokenFrom(auth.token)
	}
	if raw == "" {
		return nil, a.fail(CodeAuthFailed, messages.AuthFailed, errors.New("no identity token in authorization response"))
	}
	if err := a.verifyIDToken(ctx, s, raw, auth.nonce); err != nil {
		return nil, err
	}
	return a.result(raw), nil
}
