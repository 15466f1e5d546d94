package identity

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vocacrm/vocacrm-go/internal/messages"
	"golang.org/x/oauth2"
)

const DefaultTimeout = 30 * time.Second

var errAuthTimeout = errors.New("sign-in timed out")

// ProviderConfig is the client registration of one provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Issuer       string
	RedirectURI  string
}

type options struct {
	browser  Browser
	client   *http.Client
	logger   zerolog.Logger
	messages messages.Catalog
	timeout  time.Duration
}

type Option func(*options)

func WithBrowser(b Browser) Option {
	return func(o *options) {
		o.browser = b
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMessages(catalog messages.Catalog) Option {
	return func(o *options) {
		o.messages = catalog
	}
}

// WithTimeout bounds a whole sign-in. Zero or negative keeps the default.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		browser:  SystemBrowser{},
		client:   http.DefaultClient,
		logger:   zerolog.Nop(),
		messages: messages.For(messages.DefaultLanguage),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// base holds what every adapter shares: configuration checks, the lazy
// provider load, the deadline and the browser round trip.
type base struct {
	provider    Provider
	cfg         ProviderConfig
	placeholder string
	opts        options
	logger      zerolog.Logger
	loader      *sdkLoader
}

func newBase(provider Provider, cfg ProviderConfig, placeholder string, opts []Option) *base {
	o := newOptions(opts)
	return &base{
		provider:    provider,
		cfg:         cfg,
		placeholder: placeholder,
		opts:        o,
		logger:      o.logger.With().Str("provider", string(provider)).Logger(),
		loader:      newSDKLoader(cfg.Issuer, cfg.ClientID, o.client),
	}
}

func (b *base) Provider() Provider {
	return b.provider
}

func (b *base) configured() bool {
	return b.cfg.ClientID != "" && b.cfg.ClientID != b.placeholder
}

func (b *base) fail(code Code, key messages.Key, cause error) *Error {
	return &Error{
		Message:  b.opts.messages.Get(key, b.provider.DisplayName()),
		Code:     code,
		Provider: b.provider,
		cause:    cause,
	}
}

func (b *base) configMissing() *Error {
	return b.fail(CodeConfigMissing, messages.ConfigMissing, nil)
}

// failFromProvider classifies an error returned on the redirect URI.
func (b *base) failFromProvider(err error) *Error {
	var pe *providerError
	if errors.As(err, &pe) {
		if isCancelCode(pe.Code) {
			return b.fail(CodeCancelled, messages.AuthCancelled, err)
		}
		e := b.fail(CodeAuthFailed, messages.AuthFailed, err)
		if pe.Description != "" {
			e.Message = pe.Description
		}
		return e
	}
	return b.fail(CodeAuthFailed, messages.AuthFailed, err)
}

// failFromContext maps the end of ctx: our own deadline is a failure with its
// own message, anything else means the caller gave up.
func (b *base) failFromContext(ctx context.Context) *Error {
	cause := context.Cause(ctx)
	if errors.Is(cause, errAuthTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		return b.fail(CodeAuthFailed, messages.AuthTimeout, cause)
	}
	return b.fail(CodeCancelled, messages.AuthCancelled, cause)
}

func (b *base) sdk(ctx context.Context) (*sdk, error) {
	s, err := b.loader.load(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, b.failFromContext(ctx)
		}
		b.logger.Err(err).Str("issuer", b.cfg.Issuer).Msg("provider discovery failed")
		return nil, b.fail(CodeSDKLoadFailed, messages.SDKLoadFailed, err)
	}
	return s, nil
}

// run checks configuration and races flow against the sign-in deadline. When
// the deadline wins the flow is abandoned; its result, if any, is dropped.
func (b *base) run(ctx context.Context, flow func(ctx context.Context) (*Result, error)) (*Result, error) {
	if !b.configured() {
		return nil, b.configMissing()
	}

	ctx, cancel := context.WithTimeoutCause(ctx, b.opts.timeout, errAuthTimeout)
	defer cancel()

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := flow(ctx)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() != nil {
			return nil, b.failFromContext(ctx)
		}
		return out.res, out.err
	case <-ctx.Done():
		b.logger.Warn().Err(context.Cause(ctx)).Msg("sign-in abandoned")
		return nil, b.failFromContext(ctx)
	}
}

// authorization is one completed browser round trip.
type authorization struct {
	callback callbackResult
	token    *oauth2.Token
	nonce    string
}

// authorize sends the user through the authorization endpoint and, when a
// code comes back, redeems it. Errors are *Error values.
func (b *base) authorize(ctx context.Context, cfg oauth2.Config, params ...oauth2.AuthCodeOption) (*authorization, error) {
	server, err := startCallbackServer(cfg.RedirectURL, b.logger)
	if err != nil {
		return nil, b.fail(CodeAuthFailed, messages.AuthFailed, err)
	}
	defer server.Close()
	cfg.RedirectURL = server.RedirectURL()

	state := uuid.NewString()
	nonce := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	params = append(params, oauth2.S256ChallengeOption(verifier), oidc.Nonce(nonce))

	if err := b.opts.browser.Open(cfg.AuthCodeURL(state, params...)); err != nil {
		return nil, b.fail(CodeAuthFailed, messages.AuthFailed, err)
	}

	cb, err := server.wait(ctx)
	if err != nil {
		return nil, b.failFromContext(ctx)
	}
	if err := cb.err(); err != nil {
		return nil, err
	}
	if cb.State != state {
		return nil, b.fail(CodeAuthFailed, messages.AuthFailed, errors.New("state mismatch in authorization response"))
	}

	auth := &authorization{callback: cb, nonce: nonce}
	// A response that already carries the ID token has nothing to redeem.
	if cb.Code == "" || cb.IDToken != "" {
		return auth, nil
	}
	tok, err := cfg.Exchange(oidc.ClientContext(ctx, b.opts.client), cb.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		if ctx.Err() != nil {
			return nil, b.failFromContext(ctx)
		}
		return nil, b.fail(CodeAuthFailed, messages.AuthFailed, err)
	}
	auth.token = tok
	return auth, nil
}

// verifyIDToken checks signature, audience, expiry and nonce of an ID token.
func (b *base) verifyIDToken(ctx context.Context, s *sdk, raw, nonce string) error {
	idToken, err := s.verifier.Verify(oidc.ClientContext(ctx, b.opts.client), raw)
	if err != nil {
		return b.fail(CodeAuthFailed, messages.AuthFailed, err)
	}
	if idToken.Nonce != nonce {
		return b.fail(CodeAuthFailed, messages.AuthFailed, errors.New("id token nonce mismatch"))
	}
	return nil
}

func (b *base) result(token string) *Result {
	return &Result{Provider: b.provider.ID(), Token: token}
}

func idTokenFrom(tok *oauth2.Token) string {
	if tok == nil {
		return ""
	}
	raw, _ := tok.Extra(paramIDToken).(string)
	return raw
}

// asError passes *Error values through and classifies anything else as a
// provider response.
func (b *base) asError(err error) error {
	var idErr *Error
	if errors.As(err, &idErr) {
		return idErr
	}
	return b.failFromProvider(err)
}
