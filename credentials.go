package authclient

import (
	"context"
	"strings"
)

// CredentialStore persists the bearer token under a single well-known key.
// It is the source of truth for "is there a token" across restarts.
type CredentialStore struct {
	storage Storage
	key     string
	logger  Logger
}

// NewCredentialStore returns a store for key backed by storage.
func NewCredentialStore(storage Storage, key string, logger Logger) *CredentialStore {
	return &CredentialStore{
		storage: storage,
		key:     key,
		logger:  normalizeLogger(logger),
	}
}

// Key returns the storage key holding the token.
func (c *CredentialStore) Key() string {
	return c.key
}

// Get returns the stored token. Storage errors are logged and reported as a
// missing token.
func (c *CredentialStore) Get(ctx context.Context) (string, bool) {
	token, ok, err := c.storage.Get(ctx, c.key)
	if err != nil {
		c.logger.Error("credential lookup failed for key %s: %v", c.key, err)
		return "", false
	}

	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", false
	}

	return token, true
}

// Set persists token.
func (c *CredentialStore) Set(ctx context.Context, token string) error {
	return c.storage.Set(ctx, c.key, token)
}

// Clear removes the stored token.
func (c *CredentialStore) Clear(ctx context.Context) error {
	return c.storage.Delete(ctx, c.key)
}
