package memcache

import (
	"context"
	"time"

	"github.com/aurorafeint/memcache-client/ascii"
)

// Store is the distributed key-value store this library delegates all network
// I/O to. The default implementation is ascii.Client; any implementation must
// be safe for concurrent use.
//
// Miss semantics: Get returns (nil, nil) for an absent key, GetMulti omits
// absent keys, and Incr/Decr return found=false instead of an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// Set stores unconditionally, Add only when the key is absent, Replace
	// only when it is present. The returned bool reports whether the store
	// accepted the write. A zero expiry means no expiration; an expiry in
	// the past makes the value immediately invisible.
	Set(ctx context.Context, key string, value []byte, expiry time.Time) (bool, error)
	Add(ctx context.Context, key string, value []byte, expiry time.Time) (bool, error)
	Replace(ctx context.Context, key string, value []byte, expiry time.Time) (bool, error)

	Delete(ctx context.Context, key string) error

	Incr(ctx context.Context, key string, delta uint64) (uint64, bool, error)
	Decr(ctx context.Context, key string, delta uint64) (uint64, bool, error)

	KeyExists(ctx context.Context, key string) (bool, error)
	FlushAll(ctx context.Context) error
	Stats(ctx context.Context) (map[string]map[string]string, error)

	// SetErrorHandler installs a callback invoked on transport errors.
	SetErrorHandler(func(error))

	Close()
}

var _ Store = (*ascii.Client)(nil)
