package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/zalando/go-keyring"
)

const serviceName = "gdsync"

// TokenStore keeps one refresh token per sync target. Tokens never go into
// the config file.
type TokenStore struct {
	storage        StorageBackend
	storageWarning string
}

// TokenStoreOptions configures backend selection
type TokenStoreOptions struct {
	ForceEncryptedFile bool
}

// NewTokenStore picks the system keyring when it is usable and falls back
// to encrypted files under configDir otherwise.
func NewTokenStore(configDir string, opts TokenStoreOptions) (*TokenStore, error) {
	if !opts.ForceEncryptedFile && checkKeyringAvailable() {
		return &TokenStore{storage: NewKeyringStorage(serviceName)}, nil
	}

	storage, err := NewEncryptedFileStorage(configDir)
	if err != nil {
		return nil, err
	}
	store := &TokenStore{storage: storage}
	if !opts.ForceEncryptedFile {
		store.storageWarning = "INFO: System keyring not available. Using encrypted file storage."
	}
	return store, nil
}

// NewTokenStoreWithBackend wraps an explicit backend
func NewTokenStoreWithBackend(storage StorageBackend) *TokenStore {
	return &TokenStore{storage: storage}
}

func checkKeyringAvailable() bool {
	testKey := "gdsync-probe"
	if err := keyring.Set(serviceName, testKey, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, testKey)
	return true
}

// SaveRefreshToken stores token for targetID, replacing any previous one
func (s *TokenStore) SaveRefreshToken(targetID, token string) error {
	if strings.TrimSpace(targetID) == "" {
		return utils.InvalidArgument("target", "sync target id must not be blank")
	}
	if strings.TrimSpace(token) == "" {
		return utils.InvalidArgument("token", "refresh token must not be blank")
	}
	if err := s.storage.Save(targetID, []byte(token)); err != nil {
		return fmt.Errorf("failed to save refresh token in %s: %w", s.storage.Name(), err)
	}
	return nil
}

// LoadRefreshToken returns the stored token for targetID. A target with no
// token yields AUTH_REQUIRED.
func (s *TokenStore) LoadRefreshToken(targetID string) (string, error) {
	data, err := s.storage.Load(targetID)
	if errors.Is(err, ErrSecretNotFound) {
		return "", utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeAuthRequired,
			fmt.Sprintf("no refresh token stored for target '%s'", targetID)).
			WithContext("target", targetID).
			Build())
	}
	if err != nil {
		return "", fmt.Errorf("failed to load refresh token from %s: %w", s.storage.Name(), err)
	}
	return string(data), nil
}

// DeleteRefreshToken removes the token for targetID. Deleting a token that
// does not exist is not an error.
func (s *TokenStore) DeleteRefreshToken(targetID string) error {
	if err := s.storage.Delete(targetID); err != nil && !errors.Is(err, ErrSecretNotFound) {
		return err
	}
	return nil
}

// Backend returns the name of the storage in use
func (s *TokenStore) Backend() string {
	return s.storage.Name()
}

// StorageWarning is a non-empty notice when the preferred backend was
// unavailable.
func (s *TokenStore) StorageWarning() string {
	return s.storageWarning
}
