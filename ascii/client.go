package ascii

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Client is a pooled memcached client over the classic text protocol. Keys
// are distributed across servers by the configured hashing algorithm; each
// server gets its own lazily created connection pool.
type Client struct {
	addrs    []string
	cfg      Config
	logger   *zap.Logger
	selector selectorFunc

	mu     sync.RWMutex
	pools  map[string]*connPool
	closed bool

	// breakers guard failover: an open breaker sends traffic to the next
	// server on the ring until the quarantined one recovers.
	breakers map[string]*gobreaker.CircuitBreaker[bool]

	errMu      sync.RWMutex
	errHandler func(error)
}

// New creates a client for the given server addresses. No connection is made
// until the first operation; pools fill lazily per server.
func New(addrs []string, cfg Config) (*Client, error) {
	if len(addrs) == 0 {
		return nil, ErrNoServers
	}
	cfg = cfg.withDefaults()

	c := &Client{
		addrs:    slices.Clone(addrs),
		cfg:      cfg,
		logger:   cfg.Logger,
		selector: newSelector(cfg.Hashing, addrs),
		pools:    make(map[string]*connPool),
	}

	if cfg.Failover {
		c.breakers = make(map[string]*gobreaker.CircuitBreaker[bool], len(addrs))
		for _, addr := range addrs {
			c.breakers[addr] = newServerBreaker(addr, cfg)
		}
	}

	return c, nil
}

// newServerBreaker builds the per-server circuit breaker. With Failback the
// breaker probes a failed server again after a short quarantine; without it
// the server stays out for an hour.
func newServerBreaker(addr string, cfg Config) *gobreaker.CircuitBreaker[bool] {
	quarantine := 10 * time.Second
	if !cfg.Failback {
		quarantine = time.Hour
	}
	return gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:    addr,
		Timeout: quarantine,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})
}

// getPool returns the pool for a server, creating it on first use.
func (c *Client) getPool(addr string) (*connPool, error) {
	c.mu.RLock()
	pool, ok := c.pools[addr]
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return pool, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if pool, ok := c.pools[addr]; ok {
		return pool, nil
	}

	pool, err := newConnPool(addr, c.cfg)
	if err != nil {
		return nil, err
	}
	c.pools[addr] = pool
	return pool, nil
}

// performOn runs fn against one server, wrapped by its circuit breaker when
// failover is enabled. Server-reported errors (CLIENT_ERROR, SERVER_ERROR)
// surface to the caller without counting against the breaker.
func (c *Client) performOn(ctx context.Context, addr string, fn func(*conn) error) error {
	breaker := c.breakers[addr]
	if breaker == nil {
		pool, err := c.getPool(addr)
		if err != nil {
			return err
		}
		return pool.with(ctx, fn)
	}

	var serverErr error
	_, err := breaker.Execute(func() (bool, error) {
		pool, err := c.getPool(addr)
		if err != nil {
			return false, err
		}
		err = pool.with(ctx, fn)
		if err != nil && recoverable(err) {
			serverErr = err
			return true, nil
		}
		return err == nil, err
	})
	if serverErr != nil {
		return serverErr
	}
	return err
}

// perform runs fn against the server selected for key. When failover is
// enabled and the selected server is unreachable (or quarantined by its
// breaker), the operation moves to the next server on the ring.
func (c *Client) perform(ctx context.Context, key string, fn func(*conn) error) error {
	primary := c.selector(key)

	if !c.cfg.Failover {
		err := c.performOn(ctx, c.addrs[primary], fn)
		if err != nil && !recoverable(err) && !errors.Is(err, ErrClosed) {
			c.reportError(err)
		}
		return err
	}

	var err error
	for i := 0; i < len(c.addrs); i++ {
		addr := c.addrs[(primary+i)%len(c.addrs)]

		err = c.performOn(ctx, addr, fn)
		if err == nil || recoverable(err) || errors.Is(err, ErrClosed) {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		c.reportError(err)
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("server failed, failing over",
				zap.String("server", addr), zap.Error(err))
		}
	}
	return err
}

// Get returns the value stored under key, or nil when the key is absent.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := c.perform(ctx, key, func(cn *conn) error {
		found, err := cn.get([]string{key})
		if err != nil {
			return err
		}
		value = found[key]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// GetMulti fetches keys with one batched request per server. Absent keys are
// omitted from the result. Batches are not failed over: a rehashed batch
// would land on servers that do not hold the keys.
func (c *Client) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	byAddr := make(map[string][]string)
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return nil, err
		}
		addr := c.addrs[c.selector(key)]
		byAddr[addr] = append(byAddr[addr], key)
	}

	found := make(map[string][]byte, len(keys))
	for addr, batch := range byAddr {
		err := c.performOn(ctx, addr, func(cn *conn) error {
			values, err := cn.get(batch)
			if err != nil {
				return err
			}
			for k, v := range values {
				found[k] = v
			}
			return nil
		})
		if err != nil {
			c.reportError(err)
			return nil, err
		}
	}
	return found, nil
}

// Set stores a value unconditionally.
func (c *Client) Set(ctx context.Context, key string, value []byte, expiry time.Time) (bool, error) {
	return c.storage(ctx, "set", key, value, expiry)
}

// Add stores a value only when the key is absent.
func (c *Client) Add(ctx context.Context, key string, value []byte, expiry time.Time) (bool, error) {
	return c.storage(ctx, "add", key, value, expiry)
}

// Replace stores a value only when the key is present.
func (c *Client) Replace(ctx context.Context, key string, value []byte, expiry time.Time) (bool, error) {
	return c.storage(ctx, "replace", key, value, expiry)
}

func (c *Client) storage(ctx context.Context, verb, key string, value []byte, expiry time.Time) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	var stored bool
	err := c.perform(ctx, key, func(cn *conn) error {
		var err error
		stored, err = cn.storage(verb, key, value, expiry)
		return err
	})
	if err != nil {
		return false, err
	}
	return stored, nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return c.perform(ctx, key, func(cn *conn) error {
		return cn.delete(key)
	})
}

// Incr increments the counter under key. An absent key is reported as
// found=false: the server answers with a sentinel, not a number.
func (c *Client) Incr(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	return c.arith(ctx, "incr", key, delta)
}

// Decr decrements the counter under key, stopping at zero.
func (c *Client) Decr(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	return c.arith(ctx, "decr", key, delta)
}

func (c *Client) arith(ctx context.Context, verb, key string, delta uint64) (uint64, bool, error) {
	if err := validateKey(key); err != nil {
		return 0, false, err
	}

	var value uint64
	var found bool
	err := c.perform(ctx, key, func(cn *conn) error {
		var err error
		value, found, err = cn.arith(verb, key, delta)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return value, found, nil
}

// KeyExists reports whether key is present.
func (c *Client) KeyExists(ctx context.Context, key string) (bool, error) {
	value, err := c.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return value != nil, nil
}

// FlushAll drops every key on every server.
func (c *Client) FlushAll(ctx context.Context) error {
	var lastErr error
	for _, addr := range c.addrs {
		if err := c.performOn(ctx, addr, (*conn).flushAll); err != nil {
			c.reportError(err)
			lastErr = err
		}
	}
	return lastErr
}

// Stats returns the raw statistics block of every server, keyed by address.
func (c *Client) Stats(ctx context.Context) (map[string]map[string]string, error) {
	stats := make(map[string]map[string]string, len(c.addrs))
	for _, addr := range c.addrs {
		err := c.performOn(ctx, addr, func(cn *conn) error {
			metrics, err := cn.stats()
			if err != nil {
				return err
			}
			stats[addr] = metrics
			return nil
		})
		if err != nil {
			c.reportError(err)
			return nil, err
		}
	}
	return stats, nil
}

// SetErrorHandler installs a callback invoked on transport errors.
func (c *Client) SetErrorHandler(handler func(error)) {
	c.errMu.Lock()
	c.errHandler = handler
	c.errMu.Unlock()
}

func (c *Client) reportError(err error) {
	c.errMu.RLock()
	handler := c.errHandler
	c.errMu.RUnlock()
	if handler != nil {
		handler(err)
	}
}

// Close shuts down every connection pool. Operations after Close return
// ErrClosed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	for _, pool := range c.pools {
		pool.close()
	}
	c.pools = nil
}
