package credentials

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vocacrm/vocacrm-go/internal/errors"
	"github.com/vocacrm/vocacrm-go/token"
)

const backendFile = "file"

// FileStore keeps the pair in a single file readable only by the owner.
// Writes go through a temporary file and a rename so a crash never leaves a
// half written record behind.
type FileStore struct {
	path   string
	sealer *sealer
	logger zerolog.Logger
	lock   sync.Mutex
}

var _ Store = (*FileStore)(nil)

type FileStoreOption func(*FileStore)

// WithSecret seals the record with a key derived from secret. An empty secret
// leaves the record in plain JSON.
func WithSecret(secret string) FileStoreOption {
	return func(s *FileStore) {
		if secret != "" {
			s.sealer = newSealer(secret)
		}
	}
}

func WithFileLogger(logger zerolog.Logger) FileStoreOption {
	return func(s *FileStore) {
		s.logger = logger
	}
}

func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{
		path:   path,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Save(pair *token.Pair) error {
	data, err := Marshal(pair)
	if err != nil {
		return &StoreError{Operation: "save", Backend: backendFile, Cause: err}
	}
	if s.sealer != nil {
		if data, err = s.sealer.seal(data); err != nil {
			return &StoreError{Operation: "save", Backend: backendFile, Cause: err}
		}
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		return &StoreError{Operation: "save", Backend: backendFile, Cause: err}
	}
	return nil
}

func (s *FileStore) Load() *token.Pair {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("credential file unreadable")
		}
		return nil
	}
	if s.sealer != nil {
		if data, err = s.sealer.open(data); err != nil {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("credential file could not be opened")
			return nil
		}
	}
	pair := Unmarshal(data)
	if pair == nil {
		s.logger.Warn().Str("path", s.path).Msg("credential file holds no usable token pair")
	}
	return pair
}

func (s *FileStore) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return &StoreError{Operation: "clear", Backend: backendFile, Cause: err}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "create credential directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*")
	if err != nil {
		return errors.Wrapf(err, "create temporary credential file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "chmod temporary credential file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write temporary credential file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close temporary credential file")
	}
	return os.Rename(tmpName, path)
}
