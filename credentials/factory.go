package credentials

import (
	"fmt"

	"github.com/rs/zerolog"
)

const (
	BackendFile    = backendFile
	BackendKeyring = backendKeyring
)

type Config interface {
	GetCredentialBackend() string
	GetCredentialFile() string
	GetCredentialKey() string
}

// New builds the store selected by the configuration.
func New(cfg Config, logger zerolog.Logger) (Store, error) {
	switch cfg.GetCredentialBackend() {
	case BackendFile, "":
		return NewFileStore(cfg.GetCredentialFile(), WithSecret(cfg.GetCredentialKey()), WithFileLogger(logger)), nil
	case BackendKeyring:
		return NewKeyringStore(logger), nil
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.GetCredentialBackend())
	}
}
