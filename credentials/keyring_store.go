package credentials

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/vocacrm/vocacrm-go/token"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService and KeyringUser form the fixed storage key in the OS
	// keychain (macOS Keychain, Secret Service, Windows Credential Manager).
	KeyringService = "com.vocacrm.client"
	KeyringUser    = "tokens"

	backendKeyring = "keyring"
)

// KeyringStore keeps the serialized pair as one keychain secret.
type KeyringStore struct {
	service string
	user    string
	logger  zerolog.Logger
}

var _ Store = (*KeyringStore)(nil)

func NewKeyringStore(logger zerolog.Logger) *KeyringStore {
	return &KeyringStore{
		service: KeyringService,
		user:    KeyringUser,
		logger:  logger,
	}
}

func (s *KeyringStore) Save(pair *token.Pair) error {
	data, err := Marshal(pair)
	if err != nil {
		return &StoreError{Operation: "save", Backend: backendKeyring, Cause: err}
	}
	if err := keyring.Set(s.service, s.user, string(data)); err != nil {
		return &StoreError{Operation: "save", Backend: backendKeyring, Cause: err}
	}
	return nil
}

func (s *KeyringStore) Load() *token.Pair {
	secret, err := keyring.Get(s.service, s.user)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("keychain credentials unreadable")
		}
		return nil
	}
	return Unmarshal([]byte(secret))
}

func (s *KeyringStore) Clear() error {
	if err := keyring.Delete(s.service, s.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return &StoreError{Operation: "clear", Backend: backendKeyring, Cause: err}
	}
	return nil
}
