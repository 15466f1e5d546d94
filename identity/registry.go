package identity

import (
	"context"

	"github.com/vocacrm/vocacrm-go/internal/config"
	"github.com/vocacrm/vocacrm-go/internal/errors"
	"github.com/vocacrm/vocacrm-go/internal/messages"
)

// ErrUnsupportedProvider is the cause of the error Get returns for an
// unknown provider name.
var ErrUnsupportedProvider = errors.ErrUnsupportedProvider

// Registry maps provider names to adapters.
type Registry struct {
	adapters map[Provider]Adapter
	messages messages.Catalog
}

func NewRegistry(catalog messages.Catalog, adapters ...Adapter) *Registry {
	r := &Registry{
		adapters: make(map[Provider]Adapter, len(adapters)),
		messages: catalog,
	}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// NewRegistryFromConfig builds the Google, Kakao and Apple adapters from the
// environment.
func NewRegistryFromConfig(cfg config.OAuthConfig, catalog messages.Catalog, opts ...Option) *Registry {
	opts = append([]Option{WithMessages(catalog), WithTimeout(cfg.GetAuthTimeout())}, opts...)
	return NewRegistry(catalog,
		NewGoogle(ProviderConfig{
			ClientID:     cfg.GetGoogleClientID(),
			ClientSecret: cfg.GetGoogleClientSecret(),
			Issuer:       cfg.GetGoogleIssuer(),
			RedirectURI:  cfg.GetGoogleRedirectURI(),
		}, opts...),
		NewKakao(ProviderConfig{
			ClientID:     cfg.GetKakaoClientID(),
			ClientSecret: cfg.GetKakaoClientSecret(),
			Issuer:       cfg.GetKakaoIssuer(),
			RedirectURI:  cfg.GetKakaoRedirectURI(),
		}, opts...),
		NewApple(ProviderConfig{
			ClientID:    cfg.GetAppleClientID(),
			Issuer:      cfg.GetAppleIssuer(),
			RedirectURI: cfg.GetAppleRedirectURI(),
		}, opts...),
	)
}

// Get resolves name ("kakao" or "kakao.com"). Unknown names yield an
// AUTH_FAILED *Error.
func (r *Registry) Get(name string) (Adapter, error) {
	p, _ := ParseProvider(name)
	if a, ok := r.adapters[p]; ok {
		return a, nil
	}
	return nil, &Error{
		Message:  r.messages.Get(messages.Unsupported),
		Code:     CodeAuthFailed,
		Provider: Provider(name),
		cause:    errors.ErrUnsupportedProvider,
	}
}

// Authenticate signs in with the named provider.
func (r *Registry) Authenticate(ctx context.Context, name string) (*Result, error) {
	a, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return a.Authenticate(ctx)
}

func (r *Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r.adapters))
	for _, p := range []Provider{Google, Kakao, Apple} {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
