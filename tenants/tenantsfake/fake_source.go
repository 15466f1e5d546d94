package tenantsfake

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/vocacrm/vocacrm-go/tenants"
)

var _ tenants.Source = (*FakeSource)(nil)

// FakeSource serves a fixed set of memberships, sorted by name.
type FakeSource struct {
	tenants map[string]*tenants.Tenant
	err     error
	calls   int
	lock    sync.RWMutex
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		tenants: make(map[string]*tenants.Tenant),
	}
}

func (s *FakeSource) Upsert(t *tenants.Tenant) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	s.tenants[t.ID] = t
}

func (s *FakeSource) Delete(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.tenants, id)
}

// Fail makes MyTenants return err. Pass nil to recover.
func (s *FakeSource) Fail(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.err = err
}

func (s *FakeSource) Calls() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.calls
}

func (s *FakeSource) MyTenants(_ context.Context) ([]*tenants.Tenant, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*tenants.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
