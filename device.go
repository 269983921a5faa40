package authclient

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DeviceIdentity produces a stable identifier for this client installation.
// The identifier is generated once and reused across sessions.
type DeviceIdentity struct {
	mu       sync.Mutex
	storage  Storage
	key      string
	generate func() string
	logger   Logger
}

// DeviceOption customizes DeviceIdentity construction.
type DeviceOption func(*DeviceIdentity)

// WithDeviceIDGenerator overrides the random identifier source.
func WithDeviceIDGenerator(fn func() string) DeviceOption {
	return func(d *DeviceIdentity) {
		if fn != nil {
			d.generate = fn
		}
	}
}

// WithDeviceLogger sets the logger used for storage failures.
func WithDeviceLogger(logger Logger) DeviceOption {
	return func(d *DeviceIdentity) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDeviceIdentity returns a provider persisting its identifier under key.
func NewDeviceIdentity(storage Storage, key string, opts ...DeviceOption) *DeviceIdentity {
	d := &DeviceIdentity{
		storage:  storage,
		key:      key,
		generate: uuid.NewString,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	return d
}

// DeviceID returns the persisted identifier, creating it on first use.
func (d *DeviceIdentity) DeviceID(ctx context.Context) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	value, ok, err := d.storage.Get(ctx, d.key)
	if err != nil {
		d.logger.Warn("device id lookup failed for key %s: %v", d.key, err)
	}

	if ok && strings.TrimSpace(value) != "" {
		return value
	}

	value = d.generate()
	if err := d.storage.Set(ctx, d.key, value); err != nil {
		d.logger.Warn("device id persist failed for key %s: %v", d.key, err)
	}

	return value
}
