package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	authclient "github.com/goliatone/go-auth-client"
)

// storageNavigator stands in for the browser location. The current location
// survives between invocations through client storage.
type storageNavigator struct {
	mu      sync.Mutex
	ctx     context.Context
	store   authclient.Storage
	out     io.Writer
	current string
	logger  authclient.Logger
}

var _ authclient.Navigator = (*storageNavigator)(nil)

func newStorageNavigator(ctx context.Context, store authclient.Storage, out io.Writer, def string, logger authclient.Logger) *storageNavigator {
	current := def
	if value, ok, err := store.Get(ctx, locationKey); err != nil {
		logger.Warn("unable to read location: %v", err)
	} else if ok && value != "" {
		current = value
	}

	return &storageNavigator{
		ctx:     ctx,
		store:   store,
		out:     out,
		current: current,
		logger:  logger,
	}
}

func (n *storageNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// HardRedirect prints the forced location and commits it.
func (n *storageNavigator) HardRedirect(location string) {
	fmt.Fprintf(n.out, "redirect: %s\n", location)
	n.Go(location)
}

// Go commits location as the current one.
func (n *storageNavigator) Go(location string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = location
	if err := n.store.Set(n.ctx, locationKey, location); err != nil {
		n.logger.Warn("unable to persist location: %v", err)
	}
}
