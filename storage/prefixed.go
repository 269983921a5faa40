package storage

import (
	"context"

	authclient "github.com/goliatone/go-auth-client"
)

var _ authclient.Storage = Prefixed{}

// Prefixed scopes every key of an underlying store with Prefix.
type Prefixed struct {
	Store  authclient.Storage
	Prefix string
}

func (p Prefixed) Get(ctx context.Context, key string) (string, bool, error) {
	return p.Store.Get(ctx, p.Prefix+key)
}

func (p Prefixed) Set(ctx context.Context, key, value string) error {
	return p.Store.Set(ctx, p.Prefix+key, value)
}

func (p Prefixed) Delete(ctx context.Context, key string) error {
	return p.Store.Delete(ctx, p.Prefix+key)
}
