package identityfake

import (
	"context"
	"sync"

	"github.com/vocacrm/vocacrm-go/identity"
)

// FakeAuthenticator returns canned provider results without a browser.
type FakeAuthenticator struct {
	results map[string]*identity.Result
	errs    map[string]error
	calls   []string
	lock    sync.RWMutex
}

func NewFakeAuthenticator() *FakeAuthenticator {
	return &FakeAuthenticator{
		results: make(map[string]*identity.Result),
		errs:    make(map[string]error),
	}
}

// SetToken makes provider sign in with token.
func (f *FakeAuthenticator) SetToken(provider identity.Provider, token string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.results[string(provider)] = &identity.Result{Provider: provider.ID(), Token: token}
	delete(f.errs, string(provider))
}

// SetError makes provider fail with err.
func (f *FakeAuthenticator) SetError(provider identity.Provider, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.errs[string(provider)] = err
}

func (f *FakeAuthenticator) Calls() []string {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeAuthenticator) Authenticate(_ context.Context, name string) (*identity.Result, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, name)

	p, _ := identity.ParseProvider(name)
	if err, ok := f.errs[string(p)]; ok {
		return nil, err
	}
	if res, ok := f.results[string(p)]; ok {
		c := *res
		return &c, nil
	}
	return nil, &identity.Error{Message: "unsupported provider", Code: identity.CodeAuthFailed, Provider: p}
}
