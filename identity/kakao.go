package identity

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/vocacrm/vocacrm-go/internal/config"
	"github.com/vocacrm/vocacrm-go/internal/messages"
	"golang.org/x/oauth2"
)

// KakaoAdapter signs in with Kakao Login and returns the Kakao access token.
type KakaoAdapter struct {
	*base
	initializations atomic.Int32
}

var _ Adapter = (*KakaoAdapter)(nil)

func NewKakao(cfg ProviderConfig, opts ...Option) *KakaoAdapter {
	return &KakaoAdapter{base: newBase(Kakao, cfg, config.KakaoPlaceholderClientID, opts)}
}

func (a *KakaoAdapter) Authenticate(ctx context.Context) (*Result, error) {
	return a.run(ctx, a.authenticate)
}

func (a *KakaoAdapter) authenticate(ctx context.Context) (*Result, error) {
	s, err := a.sdk(ctx)
	if err != nil {
		return nil, err
	}
	if s.initialize(a.cfg.ClientID) {
		a.initializations.Add(1)
		a.logger.Debug().Msg("kakao sdk initialized")
	}

	cfg := oauth2.Config{
		ClientID:     s.key(),
		ClientSecret: a.cfg.ClientSecret,
		Endpoint:     s.provider.Endpoint(),
		RedirectURL:  a.cfg.RedirectURI,
	}
	auth, err := a.authorize(ctx, cfg)
	if err != nil {
		return nil, a.asError(err)
	}
	if auth.token == nil || auth.token.AccessToken == "" {
		return nil, a.fail(CodeAuthFailed, messages.AuthFailed, errors.New("no access token in token response"))
	}
	return a.result(auth.token.AccessToken), nil
}
