package identity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/sync/singleflight"
)

const discoveryTimeout = 10 * time.Second

// sdk is a loaded provider: its discovered endpoints and signing keys.
type sdk struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier

	lock        sync.Mutex
	initialized bool
	appKey      string
}

// initialize binds the application key to the handle. It runs at most once
// per loaded handle and reports whether this call did the work.
func (s *sdk) initialize(appKey string) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.initialized {
		return false
	}
	s.appKey = appKey
	s.initialized = true
	return true
}

func (s *sdk) key() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.appKey
}

// sdkLoader discovers a provider on first use. Concurrent callers share one
// discovery request; a success is cached for the adapter's lifetime and a
// failure is retried by the next caller.
type sdkLoader struct {
	issuer   string
	clientID string
	client   *http.Client

	group  singleflight.Group
	lock   sync.RWMutex
	loaded *sdk
}

func newSDKLoader(issuer, clientID string, client *http.Client) *sdkLoader {
	return &sdkLoader{
		issuer:   issuer,
		clientID: clientID,
		client:   client,
	}
}

func (l *sdkLoader) cached() *sdk {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.loaded
}

func (l *sdkLoader) load(ctx context.Context) (*sdk, error) {
	if s := l.cached(); s != nil {
		return s, nil
	}

	ch := l.group.DoChan(l.issuer, func() (any, error) {
		if s := l.cached(); s != nil {
			return s, nil
		}
		// One caller giving up must not fail the others sharing this load.
		loadCtx, cancel := context.WithTimeout(oidc.ClientContext(context.WithoutCancel(ctx), l.client), discoveryTimeout)
		defer cancel()

		provider, err := oidc.NewProvider(loadCtx, l.issuer)
		if err != nil {
			return nil, err
		}
		s := &sdk{
			provider: provider,
			verifier: provider.Verifier(&oidc.Config{ClientID: l.clientID}),
		}
		l.lock.Lock()
		l.loaded = s
		l.lock.Unlock()
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sdk), nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}
