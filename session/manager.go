// Package session attaches the VocaCRM bearer credentials to backend
// requests and keeps them fresh.
//
// An expired access token is refreshed before a request is sent, and a 401
// answer triggers one refresh and one retry. At most one refresh is in flight
// at any time; callers arriving meanwhile share its outcome. When a refresh
// fails the credentials are cleared and every OnSessionExpired listener is
// notified.
package session

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vocacrm/vocacrm-go/credentials"
	"github.com/vocacrm/vocacrm-go/internal/errors"
	"github.com/vocacrm/vocacrm-go/internal/messages"
	"github.com/vocacrm/vocacrm-go/token"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultLogoutTimeout = 5 * time.Second

	defaultHTTPTimeout = 30 * time.Second
)

type Config interface {
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
}

type Manager struct {
	baseURL       string
	store         credentials.Store
	client        *http.Client
	codec         token.Codec
	logger        zerolog.Logger
	messages      messages.Catalog
	now           func() time.Time
	logoutTimeout time.Duration

	lock sync.RWMutex
	pair *token.Pair

	refreshGroup singleflight.Group

	listenersLock sync.Mutex
	listeners     map[uint64]func()
	nextListener  uint64
}

type Option func(*Manager)

func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) {
		m.client = client
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithCodec(codec token.Codec) Option {
	return func(m *Manager) {
		m.codec = codec
	}
}

func WithMessages(catalog messages.Catalog) Option {
	return func(m *Manager) {
		m.messages = catalog
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func WithLogoutTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		m.logoutTimeout = timeout
	}
}

func New(cfg Config, store credentials.Store, opts ...Option) *Manager {
	timeout := cfg.GetHTTPTimeout()
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	m := &Manager{
		baseURL:       strings.TrimRight(cfg.GetAPIBaseURL(), "/"),
		store:         store,
		client:        &http.Client{Timeout: timeout},
		codec:         token.DefaultCodec,
		logger:        zerolog.Nop(),
		messages:      messages.For(messages.DefaultLanguage),
		now:           time.Now,
		logoutTimeout: DefaultLogoutTimeout,
		listeners:     make(map[uint64]func()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init loads the persisted credentials, if any.
func (m *Manager) Init(_ context.Context) error {
	pair := m.store.Load()

	m.lock.Lock()
	m.pair = pair
	m.lock.Unlock()

	m.logger.Debug().Bool("restored", pair != nil).Msg("session initialized")
	return nil
}

// Dispose drops all listeners and idle connections. The stored credentials
// are kept.
func (m *Manager) Dispose() {
	m.listenersLock.Lock()
	m.listeners = make(map[uint64]func())
	m.listenersLock.Unlock()

	m.client.CloseIdleConnections()
}

// Tokens returns a copy of the current pair, or nil.
func (m *Manager) Tokens() *token.Pair {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.pair.Clone()
}

// HasValidToken reports whether an access token is held and not expired.
func (m *Manager) HasValidToken() bool {
	pair := m.Tokens()
	return pair != nil && !m.codec.IsExpired(pair.AccessToken, m.now())
}

// Codec is the codec used for expiry checks.
func (m *Manager) Codec() token.Codec {
	return m.codec
}

// SaveTokens makes pair current and persists it. The pair stays current even
// when persisting fails.
func (m *Manager) SaveTokens(pair *token.Pair) error {
	if !pair.Valid() {
		return errors.ErrPartialPair
	}
	m.lock.Lock()
	defer m.lock.Unlock()

	m.pair = pair.Clone()
	if err := m.store.Save(pair); err != nil {
		return errors.Wrapf(err, "persist token pair")
	}
	return nil
}

// replace installs next only while seen is still current. A pair cleared or
// replaced during a refresh is not brought back.
func (m *Manager) replace(seen, next *token.Pair) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.pair == nil || !m.pair.Equal(seen) {
		m.logger.Debug().Bool("cleared", m.pair == nil).Msg("refreshed pair dropped, session changed meanwhile")
		return errSessionChanged
	}
	m.pair = next.Clone()
	if err := m.store.Save(next); err != nil {
		m.logger.Err(err).Msg("refreshed credentials kept in memory only")
	}
	return nil
}

// ClearTokens forgets the current pair in memory and in the store.
func (m *Manager) ClearTokens() {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.pair = nil
	if err := m.store.Clear(); err != nil {
		m.logger.Err(err).Msg("clearing stored credentials")
	}
}

// OnSessionExpired registers fn to run whenever the session ends because the
// credentials could not be refreshed. The returned function unregisters it.
func (m *Manager) OnSessionExpired(fn func()) (unsubscribe func()) {
	m.listenersLock.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.listenersLock.Unlock()

	return func() {
		m.listenersLock.Lock()
		delete(m.listeners, id)
		m.listenersLock.Unlock()
	}
}

// expire clears the credentials if they are still seen and notifies the
// listeners. A session that was already replaced or cleared is left alone,
// so listeners hear about each session at most once.
func (m *Manager) expire(seen *token.Pair) {
	m.lock.Lock()
	if m.pair == nil || !m.pair.Equal(seen) {
		m.lock.Unlock()
		return
	}
	m.pair = nil
	if err := m.store.Clear(); err != nil {
		m.logger.Err(err).Msg("clearing stored credentials")
	}
	m.lock.Unlock()

	m.logger.Info().Msg("session expired")

	m.listenersLock.Lock()
	listeners := make([]func(), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.listenersLock.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// interrupted is returned when ctx ends while a request waits on a refresh.
// The session is left as it is.
func (m *Manager) interrupted(ctx context.Context) error {
	return &APIError{
		Message: m.messages.Get(messages.RequestFailed),
		cause:   context.Cause(ctx),
	}
}

func (m *Manager) sessionExpired() error {
	return &APIError{
		Status:  http.StatusUnauthorized,
		Message: m.messages.Get(messages.SessionExpired),
		cause:   ErrSessionExpired,
	}
}
