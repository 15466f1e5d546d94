// Package auth tracks whether the user is signed in and drives sign-in,
// sign-up and sign-out on top of the session manager.
package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/vocacrm/vocacrm-go/identity"
	"github.com/vocacrm/vocacrm-go/internal/errors"
	"github.com/vocacrm/vocacrm-go/internal/messages"
	"github.com/vocacrm/vocacrm-go/session"
	"github.com/vocacrm/vocacrm-go/tenants"
	"github.com/vocacrm/vocacrm-go/token"
)

const (
	loginEndpoint  = "/auth/login"
	signupEndpoint = "/auth/signup"
)

// Session is the part of *session.Manager the controller drives.
type Session interface {
	Init(ctx context.Context) error
	Tokens() *token.Pair
	HasValidToken() bool
	Refresh(ctx context.Context) bool
	SaveTokens(pair *token.Pair) error
	ClearTokens()
	Logout(ctx context.Context)
	PostPublic(ctx context.Context, endpoint string, body, out any) error
	OnSessionExpired(fn func()) (unsubscribe func())
	Codec() token.Codec
}

var _ Session = (*session.Manager)(nil)

// Authenticator runs the provider sign-in for a provider name.
type Authenticator interface {
	Authenticate(ctx context.Context, provider string) (*identity.Result, error)
}

var _ Authenticator = (*identity.Registry)(nil)

type Controller struct {
	session    Session
	identities Authenticator
	tenants    *tenants.Directory
	validate   *validator.Validate
	logger     zerolog.Logger
	messages   messages.Catalog

	lock    sync.RWMutex
	state   State
	user    *token.Claims
	loading bool

	subscribersLock sync.Mutex
	subscribers     map[uint64]func(Snapshot)
	nextSubscriber  uint64

	unsubscribeExpired func()
}

type Option func(*Controller)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithMessages(catalog messages.Catalog) Option {
	return func(c *Controller) {
		c.messages = catalog
	}
}

func New(sess Session, identities Authenticator, directory *tenants.Directory, opts ...Option) *Controller {
	c := &Controller{
		session:     sess,
		identities:  identities,
		tenants:     directory,
		validate:    newValidator(),
		logger:      zerolog.Nop(),
		messages:    messages.For(messages.DefaultLanguage),
		state:       Uninitialized,
		subscribers: make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.unsubscribeExpired = sess.OnSessionExpired(c.onSessionExpired)
	return c
}

// Close detaches the controller from the session manager.
func (c *Controller) Close() {
	c.unsubscribeExpired()
}

// Start restores a persisted session: a valid access token signs the user in
// directly, an expired one gets a single refresh attempt.
func (c *Controller) Start(ctx context.Context) Snapshot {
	c.set(Checking, nil, true)

	if err := c.session.Init(ctx); err != nil {
		c.logger.Err(err).Msg("session init failed")
	}

	if c.session.Tokens() == nil {
		return c.signedOut()
	}
	if !c.session.HasValidToken() && !c.session.Refresh(ctx) {
		if ctx.Err() != nil {
			// Gave up waiting; the stored session may still be refreshed later.
			c.logger.Info().Err(context.Cause(ctx)).Msg("session restore interrupted")
			return c.signedOut()
		}
		c.logger.Info().Msg("stored session could not be refreshed")
		c.session.ClearTokens()
		return c.signedOut()
	}

	pair := c.session.Tokens()
	if pair == nil {
		return c.signedOut()
	}
	claims, err := c.session.Codec().DecodeClaims(pair.AccessToken)
	if err != nil {
		c.logger.Warn().Err(err).Msg("stored access token unreadable")
		c.session.ClearTokens()
		return c.signedOut()
	}
	c.signedIn(ctx, claims)
	return c.Snapshot()
}

// Login signs in with provider. A provider identity without an account
// yields a *SignupRequiredError; a cancelled provider sign-in is returned as
// the provider's *identity.Error so callers can stay silent.
func (c *Controller) Login(ctx context.Context, provider string) (*token.Claims, error) {
	res, err := c.identities.Authenticate(ctx, provider)
	if err != nil {
		return nil, err
	}
	return c.LoginWithResult(ctx, res)
}

type loginRequest struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

// LoginWithResult exchanges an already obtained provider token for a
// VocaCRM session.
func (c *Controller) LoginWithResult(ctx context.Context, res *identity.Result) (*token.Claims, error) {
	c.setLoading(true)
	defer c.setLoading(false)

	var pair token.Pair
	err := c.session.PostPublic(ctx, loginEndpoint, loginRequest{Provider: res.Provider, Token: res.Token}, &pair)
	if err != nil {
		if session.StatusOf(err) == http.StatusNotFound && session.CodeOf(err) == backendUserNotFound {
			return nil, &SignupRequiredError{Result: res, Message: c.messages.Get(messages.SignupRequired)}
		}
		return nil, err
	}
	return c.establish(ctx, &pair)
}

// Signup creates the account for a provider identity and signs it in.
func (c *Controller) Signup(ctx context.Context, params SignupParams) (*token.Claims, error) {
	if err := validateSignup(c.validate, params); err != nil {
		return nil, err
	}

	c.setLoading(true)
	defer c.setLoading(false)

	var pair token.Pair
	if err := c.session.PostPublic(ctx, signupEndpoint, params, &pair); err != nil {
		if session.CodeOf(err) == backendUserAlreadyExists {
			c.logger.Info().Str("provider", params.Provider).Msg("signup for an existing account")
		}
		return nil, err
	}
	return c.establish(ctx, &pair)
}

func (c *Controller) establish(ctx context.Context, pair *token.Pair) (*token.Claims, error) {
	if err := c.session.SaveTokens(pair); err != nil {
		if errors.Is(err, errors.ErrPartialPair) {
			return nil, errors.Wrapf(err, "login response")
		}
		c.logger.Warn().Err(err).Msg("credentials not persisted, session lasts until exit")
	}

	claims, err := c.session.Codec().DecodeClaims(pair.AccessToken)
	if err != nil {
		c.session.ClearTokens()
		c.signedOut()
		return nil, errors.Wrapf(ErrTokenParseFailed, "%s", c.messages.Get(messages.TokenParseFailed))
	}
	c.signedIn(ctx, claims)
	return claims, nil
}

// Logout ends the session on the server, best effort, and locally.
func (c *Controller) Logout(ctx context.Context) {
	c.session.Logout(ctx)
	c.tenants.Clear()
	c.signedOut()
}

// SelectTenant changes the current business place.
func (c *Controller) SelectTenant(id string) error {
	if err := c.tenants.Select(id); err != nil {
		return err
	}
	c.notify()
	return nil
}

// ReloadTenants fetches the business places again, keeping the selection
// when it still exists.
func (c *Controller) ReloadTenants(ctx context.Context) []*tenants.Tenant {
	list := c.tenants.Load(ctx, c.defaultTenantID())
	c.notify()
	return list
}

// RequireAuthenticated guards operations that need a signed-in user.
func (c *Controller) RequireAuthenticated() error {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.state != Authenticated {
		return ErrNotAuthenticated
	}
	return nil
}

func (c *Controller) Snapshot() Snapshot {
	c.lock.RLock()
	snap := Snapshot{
		State:           c.state,
		User:            c.user,
		IsAuthenticated: c.state == Authenticated,
		Loading:         c.loading,
	}
	c.lock.RUnlock()

	if snap.IsAuthenticated {
		snap.CurrentTenant = c.tenants.Current()
		snap.Tenants = c.tenants.List()
	}
	return snap
}

// Subscribe calls fn with every state change until unsubscribe is called.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.subscribersLock.Lock()
	id := c.nextSubscriber
	c.nextSubscriber++
	c.subscribers[id] = fn
	c.subscribersLock.Unlock()

	return func() {
		c.subscribersLock.Lock()
		delete(c.subscribers, id)
		c.subscribersLock.Unlock()
	}
}

func (c *Controller) onSessionExpired() {
	c.logger.Info().Msg("session expired, signing out")
	c.tenants.Clear()
	c.signedOut()
}

func (c *Controller) signedIn(ctx context.Context, claims *token.Claims) {
	c.lock.Lock()
	c.state = Authenticated
	c.user = claims
	c.loading = false
	c.lock.Unlock()

	c.tenants.Load(ctx, claims.DefaultTenantID)
	c.logger.Info().Str("subject", claims.SubjectID).Msg("signed in")
	c.notify()
}

func (c *Controller) signedOut() Snapshot {
	c.set(Unauthenticated, nil, false)
	return c.Snapshot()
}

func (c *Controller) set(state State, user *token.Claims, loading bool) {
	c.lock.Lock()
	c.state = state
	c.user = user
	c.loading = loading
	c.lock.Unlock()
	c.notify()
}

func (c *Controller) setLoading(loading bool) {
	c.lock.Lock()
	changed := c.loading != loading
	c.loading = loading
	c.lock.Unlock()
	if changed {
		c.notify()
	}
}

func (c *Controller) defaultTenantID() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	if c.user == nil {
		return ""
	}
	return c.user.DefaultTenantID
}

func (c *Controller) notify() {
	snap := c.Snapshot()

	c.subscribersLock.Lock()
	subscribers := make([]func(Snapshot), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subscribers = append(subscribers, fn)
	}
	c.subscribersLock.Unlock()

	for _, fn := range subscribers {
		fn(snap)
	}
}
