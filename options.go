package memcache

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aurorafeint/memcache-client/ascii"
)

// Options configures a Cache client. The zero value is usable: it yields a
// read-write client with no namespace on the "default" pool.
type Options struct {
	// Namespace is prefixed (with a colon) to every logical key.
	Namespace string

	// Readonly makes every mutating operation fail with ErrReadonly.
	Readonly bool

	// SingleThreaded caps the collaborator at one connection per server.
	// Leave false to let the pool serve concurrent callers.
	SingleThreaded bool

	// PoolName keys the process-wide pool registry. Clients constructed with
	// the same name share one underlying pool. Defaults to "default".
	PoolName string

	// Connection pool sizing. Defaults: 10 initial, 5 min, 100 max.
	PoolInitialSize int
	PoolMinSize     int
	PoolMaxSize     int

	// PoolMaxIdle is how long a connection may sit idle before the
	// maintenance pass destroys it. Default 5m.
	PoolMaxIdle time.Duration

	// PoolMaxBusy bounds how long a caller waits to acquire a connection.
	// Default 30s.
	PoolMaxBusy time.Duration

	// PoolMaintenanceSleep is the interval between maintenance passes.
	// Default 30s.
	PoolMaintenanceSleep time.Duration

	// Socket timeouts. Default 3s each.
	SocketTimeout        time.Duration
	SocketConnectTimeout time.Duration

	// AliveCheck pings idle connections during maintenance.
	AliveCheck bool

	// DisableFailover stops operations from moving to the next server when
	// the selected one is unreachable. Failover is on by default.
	DisableFailover bool

	// DisableFailback keeps traffic away from a recovered server. Failback
	// is on by default.
	DisableFailback bool

	// UseNagle leaves Nagle's algorithm enabled on connections.
	UseNagle bool

	// Hashing selects the key-to-server distribution algorithm.
	Hashing ascii.Hashing

	// ErrorHandler is invoked by the collaborator on transport errors.
	ErrorHandler func(error)

	// Observer is invoked around every operation. Defaults to a no-op.
	Observer Observer

	// Silent suppresses observer invocation entirely.
	Silent bool

	// Logger receives pool lifecycle and failover events.
	// Defaults to zap.NewNop().
	Logger *zap.Logger

	// LogLevel raises the minimum level of Logger.
	LogLevel zapcore.Level
}

func (o Options) withDefaults() Options {
	if o.PoolName == "" {
		o.PoolName = "default"
	}
	if o.PoolInitialSize == 0 {
		o.PoolInitialSize = 10
	}
	if o.PoolMinSize == 0 {
		o.PoolMinSize = 5
	}
	if o.PoolMaxSize == 0 {
		o.PoolMaxSize = 100
	}
	if o.PoolMaxIdle == 0 {
		o.PoolMaxIdle = 5 * time.Minute
	}
	if o.PoolMaxBusy == 0 {
		o.PoolMaxBusy = 30 * time.Second
	}
	if o.PoolMaintenanceSleep == 0 {
		o.PoolMaintenanceSleep = 30 * time.Second
	}
	if o.SocketTimeout == 0 {
		o.SocketTimeout = 3 * time.Second
	}
	if o.SocketConnectTimeout == 0 {
		o.SocketConnectTimeout = 3 * time.Second
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	} else {
		o.Logger = o.Logger.WithOptions(zap.IncreaseLevel(o.LogLevel))
	}
	return o
}

// poolConfig translates client options into the collaborator's configuration
// surface.
func (o Options) poolConfig() ascii.Config {
	maxSize := o.PoolMaxSize
	if o.SingleThreaded {
		maxSize = 1
	}
	return ascii.Config{
		InitialSize:         min(o.PoolInitialSize, maxSize),
		MinSize:             min(o.PoolMinSize, maxSize),
		MaxSize:             maxSize,
		MaxIdle:             o.PoolMaxIdle,
		AcquireTimeout:      o.PoolMaxBusy,
		MaintenanceInterval: o.PoolMaintenanceSleep,
		SocketTimeout:       o.SocketTimeout,
		ConnectTimeout:      o.SocketConnectTimeout,
		AliveCheck:          o.AliveCheck,
		Failover:            !o.DisableFailover,
		Failback:            !o.DisableFailback,
		Nagle:               o.UseNagle,
		Hashing:             o.Hashing,
		Logger:              o.Logger,
	}
}

// CallOptions carries the per-operation options. The zero value means:
// no expiry, codec-encoded, unconditional write, no forced refresh.
type CallOptions struct {
	// ExpiresIn sets a relative expiry. Zero means no expiry. A negative
	// value produces an expiry in the past, which the store treats as
	// already expired; callers use this to force immediate invisibility.
	ExpiresIn time.Duration

	// Raw bypasses the value codec in both directions.
	Raw bool

	// UnlessExist stores only when the key is absent (create-only).
	UnlessExist bool

	// IfExist stores only when the key is present (overwrite-only).
	// When both flags are set, IfExist wins.
	IfExist bool

	// Force makes Fetch skip the read and always recompute.
	Force bool
}

type writeMode int

const (
	modeUnconditional writeMode = iota
	modeCreateOnly
	modeReplaceOnly
)

// selectWriteMode maps write intent to a store operation. IfExist is checked
// first, so it wins when both flags are set.
func selectWriteMode(opts CallOptions) writeMode {
	switch {
	case opts.IfExist:
		return modeReplaceOnly
	case opts.UnlessExist:
		return modeCreateOnly
	default:
		return modeUnconditional
	}
}

// expiryTime converts a relative expiry to the absolute timestamp handed to
// the store. Zero duration maps to the zero time, meaning no expiry.
func expiryTime(now time.Time, expiresIn time.Duration) time.Time {
	if expiresIn == 0 {
		return time.Time{}
	}
	return now.Add(expiresIn)
}
