package config

import (
	"os"
	"path/filepath"
)

const (
	CredentialBackendFile    = "file"
	CredentialBackendKeyring = "keyring"
)

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetCredentialBackend() string {
	return GetEnv("CREDENTIAL_BACKEND", CredentialBackendFile)
}

func (Storage) GetCredentialFile() string {
	if file := os.Getenv("CREDENTIAL_FILE"); file != "" {
		return file
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "vocacrm", "tokens.json")
}
