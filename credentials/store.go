// Package credentials persists the token pair across process restarts.
//
// A Store is a dumb slot: it keeps exactly one serialized pair under a fixed
// key and knows nothing about expiry. Load never fails loudly; a missing or
// unreadable record simply loads as nil.
package credentials

import (
	"encoding/json"
	"fmt"

	"github.com/vocacrm/vocacrm-go/internal/errors"
	"github.com/vocacrm/vocacrm-go/token"
)

type Store interface {
	// Save replaces the stored pair. Incomplete pairs are rejected.
	Save(pair *token.Pair) error

	// Load returns the stored pair, or nil when nothing usable is stored.
	Load() *token.Pair

	// Clear removes the stored pair. Clearing an empty store is not an error.
	Clear() error
}

// StoreError reports a failed credential storage operation.
type StoreError struct {
	Operation string // "save" or "clear"
	Backend   string // "file", "keyring", ...
	Cause     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s credentials (%s): %v", e.Operation, e.Backend, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Marshal serializes a complete pair into the stored record format.
func Marshal(pair *token.Pair) ([]byte, error) {
	if !pair.Valid() {
		return nil, errors.ErrPartialPair
	}
	return json.Marshal(pair)
}

// Unmarshal decodes a stored record. It returns nil for anything that is not
// a complete pair.
func Unmarshal(data []byte) *token.Pair {
	if len(data) == 0 {
		return nil
	}
	var pair token.Pair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil
	}
	if !pair.Valid() {
		return nil
	}
	return &pair
}
