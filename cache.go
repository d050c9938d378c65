package memcache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aurorafeint/memcache-client/ascii"
)

// Cache is a client-side caching layer in front of a distributed key-value
// store. It adds key namespacing, binary-safe value encoding, read-through
// fetch semantics, write-mode selection and normalized statistics on top of
// the pooled collaborator that does the actual network I/O.
//
// A Cache holds no per-call mutable state and is safe for concurrent use.
type Cache struct {
	namespace string
	readonly  bool
	silent    bool
	observer  Observer
	logger    *zap.Logger

	poolName string
	handle   *poolHandle
	direct   Store
}

// New constructs a Cache over the given server addresses. Addresses without a
// port default to port 11211. Clients sharing Options.PoolName share one
// underlying pool; only the first construction under a name builds it, later
// constructions reuse it and their pool configuration is ignored.
func New(servers []string, opts Options) (*Cache, error) {
	opts = opts.withDefaults()

	if len(servers) == 0 {
		return nil, ErrNoServers
	}
	addrs := normalizeAddrs(servers)

	logger := opts.Logger.With(zap.String("pool", opts.PoolName))
	cfg := opts.poolConfig()
	errorHandler := opts.ErrorHandler

	build := func() (Store, error) {
		client, err := ascii.New(addrs, cfg)
		if err != nil {
			return nil, err
		}
		if errorHandler != nil {
			client.SetErrorHandler(errorHandler)
		}
		logger.Info("pool initialized", zap.Strings("servers", addrs))
		return client, nil
	}

	handle, err := acquirePool(opts.PoolName, build)
	if err != nil {
		return nil, err
	}

	return &Cache{
		namespace: opts.Namespace,
		readonly:  opts.Readonly,
		silent:    opts.Silent,
		observer:  opts.Observer,
		logger:    logger,
		poolName:  opts.PoolName,
		handle:    handle,
	}, nil
}

// NewWithStore constructs a Cache over a caller-provided collaborator,
// bypassing the pool registry. Close closes the provided store.
func NewWithStore(store Store, opts Options) *Cache {
	opts = opts.withDefaults()
	return &Cache{
		namespace: opts.Namespace,
		readonly:  opts.Readonly,
		silent:    opts.Silent,
		observer:  opts.Observer,
		logger:    opts.Logger,
		poolName:  opts.PoolName,
		direct:    store,
	}
}

func (c *Cache) store() Store {
	if c.handle != nil {
		return c.handle.get()
	}
	return c.direct
}

func (c *Cache) observe(op, key string, opts CallOptions) {
	if c.silent {
		return
	}
	c.observer.Observe(op, key, opts)
}

// Get reads a key. Missing keys return (nil, nil). Unless opts.Raw is set,
// the stored value is decoded by the value codec.
func (c *Cache) Get(ctx context.Context, key string, opts CallOptions) (any, error) {
	c.observe("get", key, opts)

	data, err := c.store().Get(ctx, wireKey(c.namespace, key))
	if err != nil {
		return nil, err
	}
	return decodeValue(data, opts.Raw)
}

// GetMulti reads several keys in one batched store call. The result maps
// logical keys to decoded values and contains only the keys that hit.
func (c *Cache) GetMulti(ctx context.Context, keys []string, opts CallOptions) (map[string]any, error) {
	c.observe("get_multi", "", opts)

	wire := make([]string, len(keys))
	logical := make(map[string]string, len(keys))
	for i, key := range keys {
		wire[i] = wireKey(c.namespace, key)
		logical[wire[i]] = key
	}

	found, err := c.store().GetMulti(ctx, wire)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(found))
	for wk, data := range found {
		if data == nil {
			continue
		}
		value, err := decodeValue(data, opts.Raw)
		if err != nil {
			return nil, err
		}
		values[logical[wk]] = value
	}
	return values, nil
}

// Set writes a value. The write mode is selected from the options: IfExist
// maps to an overwrite-only store, UnlessExist to create-only, otherwise the
// write is unconditional. The returned bool reports whether the store
// accepted the write; a conditional write losing its condition is not an
// error.
func (c *Cache) Set(ctx context.Context, key string, value any, opts CallOptions) (bool, error) {
	if c.readonly {
		return false, ErrReadonly
	}
	c.observe("set", key, opts)

	data, err := encodeValue(value, opts.Raw)
	if err != nil {
		return false, err
	}

	wk := wireKey(c.namespace, key)
	expiry := expiryTime(time.Now(), opts.ExpiresIn)

	switch selectWriteMode(opts) {
	case modeReplaceOnly:
		return c.store().Replace(ctx, wk, data, expiry)
	case modeCreateOnly:
		return c.store().Add(ctx, wk, data, expiry)
	default:
		return c.store().Set(ctx, wk, data, expiry)
	}
}

// Fetch reads a key and, on a miss, computes the value, writes it back and
// returns it. With opts.Force the read is skipped and the value is always
// recomputed. A nil compute makes Fetch behave exactly like Get. The compute
// function runs at most once per call.
func (c *Cache) Fetch(ctx context.Context, key string, opts CallOptions, compute func() (any, error)) (any, error) {
	c.observe("fetch", key, opts)

	if compute == nil {
		return c.Get(ctx, key, opts)
	}

	if !opts.Force {
		value, err := c.Get(ctx, key, opts)
		if err != nil {
			return nil, err
		}
		if value != nil {
			return value, nil
		}
	}

	value, err := compute()
	if err != nil {
		return nil, err
	}
	if _, err := c.Set(ctx, key, value, opts); err != nil {
		return nil, err
	}
	return value, nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.readonly {
		return ErrReadonly
	}
	c.observe("delete", key, CallOptions{})

	return c.store().Delete(ctx, wireKey(c.namespace, key))
}

// Incr increments a counter by delta. An absent key returns found=false
// rather than an error.
func (c *Cache) Incr(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	if c.readonly {
		return 0, false, ErrReadonly
	}
	c.observe("incr", key, CallOptions{})

	return c.store().Incr(ctx, wireKey(c.namespace, key), delta)
}

// Decr decrements a counter by delta. An absent key returns found=false
// rather than an error.
func (c *Cache) Decr(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	if c.readonly {
		return 0, false, ErrReadonly
	}
	c.observe("decr", key, CallOptions{})

	return c.store().Decr(ctx, wireKey(c.namespace, key), delta)
}

// Exists reports whether a key is present without reading its value.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	c.observe("exists", key, CallOptions{})

	return c.store().KeyExists(ctx, wireKey(c.namespace, key))
}

// FlushAll drops every key on every server, across all namespaces.
func (c *Cache) FlushAll(ctx context.Context) error {
	if c.readonly {
		return ErrReadonly
	}
	c.observe("flush_all", "", CallOptions{})

	return c.store().FlushAll(ctx)
}

// Stats returns normalized per-server statistics.
func (c *Cache) Stats(ctx context.Context) (ServerStats, error) {
	c.observe("stats", "", CallOptions{})

	raw, err := c.store().Stats(ctx)
	if err != nil {
		return nil, err
	}
	return normalizeStats(raw), nil
}

// Reset tears down and rebuilds the shared pool this client uses. It is a
// global operation: every client sharing the pool name is affected.
func (c *Cache) Reset() error {
	if c.handle == nil {
		return nil
	}
	c.logger.Warn("resetting pool")
	return c.handle.reset()
}

// Close releases the resources behind this client. Like Reset it is a global
// operation for registry-backed clients: the shared pool is closed, every
// client sharing the pool name stops working, and the name becomes available
// for a fresh construction. For a NewWithStore client it closes the provided
// store.
func (c *Cache) Close() {
	if c.handle != nil {
		c.logger.Info("closing pool")
		releasePool(c.poolName)
		return
	}
	if c.direct != nil {
		c.direct.Close()
	}
}
