// Package ascii implements a pooled-connection memcached client speaking the
// classic text protocol. It is the default collaborator behind the caching
// layer in the root package: connection lifecycle, key-to-server hashing,
// failover and socket timeouts all live here.
package ascii

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
)

// Hashing selects the key-to-server distribution algorithm.
type Hashing int

const (
	// HashNative distributes keys with xxh3 + jump hash. Best distribution,
	// not compatible with other client implementations.
	HashNative Hashing = iota

	// HashCRC32 uses CRC32-IEEE modulo server count, compatible with the
	// common CRC32_HASH scheme of other clients.
	HashCRC32

	// HashLegacy reproduces the Java String.hashCode based scheme of older
	// clients, for clusters shared with them.
	HashLegacy

	// HashConsistent builds an MD5 ketama-style ring with virtual nodes.
	HashConsistent
)

// Config holds the collaborator's configuration surface. The zero value is
// usable; see the field comments for defaults.
type Config struct {
	// Pool sizing per server. Defaults: 1 initial, 1 min, 10 max.
	InitialSize int
	MinSize     int
	MaxSize     int

	// MaxIdle is how long a connection may sit idle before the maintenance
	// pass destroys it (down to MinSize). Default 5m.
	MaxIdle time.Duration

	// AcquireTimeout bounds how long a caller waits for a connection when
	// the pool is busy. Default 30s.
	AcquireTimeout time.Duration

	// MaintenanceInterval is the period of the idle-connection sweep.
	// Default 30s.
	MaintenanceInterval time.Duration

	// SocketTimeout is the per-operation read/write deadline. Default 3s.
	SocketTimeout time.Duration

	// ConnectTimeout bounds connection establishment. Default 3s.
	ConnectTimeout time.Duration

	// AliveCheck pings idle connections during maintenance and destroys the
	// ones that fail.
	AliveCheck bool

	// Failover moves an operation to the next server on the ring when the
	// selected one is unreachable.
	Failover bool

	// Failback lets a recovered server take traffic again. Without it a
	// failed server stays out for a long quarantine.
	Failback bool

	// Nagle leaves Nagle's algorithm enabled. Disabled by default: requests
	// are small and latency-sensitive.
	Nagle bool

	// Hashing selects the key distribution algorithm.
	Hashing Hashing

	// Logger receives connection and failover events. Defaults to a no-op.
	Logger *zap.Logger

	// Dial overrides connection establishment, for tests.
	Dial func(ctx context.Context, addr string) (net.Conn, error)
}

func (c Config) withDefaults() Config {
	if c.InitialSize == 0 {
		c.InitialSize = 1
	}
	if c.MinSize == 0 {
		c.MinSize = 1
	}
	if c.MaxSize == 0 {
		c.MaxSize = 10
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5 * time.Minute
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.MaintenanceInterval == 0 {
		c.MaintenanceInterval = 30 * time.Second
	}
	if c.SocketTimeout == 0 {
		c.SocketTimeout = 3 * time.Second
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 3 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.InitialSize > c.MaxSize {
		c.InitialSize = c.MaxSize
	}
	if c.MinSize > c.MaxSize {
		c.MinSize = c.MaxSize
	}
	return c
}
