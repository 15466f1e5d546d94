package credentialsfake

import (
	"sync"

	"github.com/vocacrm/vocacrm-go/credentials"
	"github.com/vocacrm/vocacrm-go/token"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore keeps the serialized record in memory so tests see the same
// round trip behaviour as the real backends.
type FakeStore struct {
	record  []byte
	saves   int
	clears  int
	saveErr error
	lock    sync.RWMutex
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// NewFakeStoreWith returns a store already holding pair.
func NewFakeStoreWith(pair *token.Pair) *FakeStore {
	s := NewFakeStore()
	if data, err := credentials.Marshal(pair); err == nil {
		s.record = data
	}
	return s
}

func (s *FakeStore) Save(pair *token.Pair) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	data, err := credentials.Marshal(pair)
	if err != nil {
		return err
	}
	s.record = data
	s.saves++
	return nil
}

func (s *FakeStore) Load() *token.Pair {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return credentials.Unmarshal(s.record)
}

func (s *FakeStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.record = nil
	s.clears++
	return nil
}

// SetRaw replaces the stored record with arbitrary bytes.
func (s *FakeStore) SetRaw(data []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.record = data
}

// FailSaves makes every following Save return err. Pass nil to recover.
func (s *FakeStore) FailSaves(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.saveErr = err
}

func (s *FakeStore) Saves() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.saves
}

func (s *FakeStore) Clears() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.clears
}
