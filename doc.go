// Package memcache is a client-side caching layer for a memcached cluster.
//
// On top of the pooled text-protocol client in the ascii subpackage it adds
// key namespacing (so multiple logical caches can share one cluster),
// transparent binary-safe encoding of structured values, read-through Fetch
// semantics, conditional write modes and normalized server statistics.
//
// Clients constructed with the same Options.PoolName share one process-wide
// connection pool:
//
//	cache, err := memcache.New([]string{"cache1", "cache2:11212"}, memcache.Options{
//		Namespace: "sessions",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	value, err := cache.Fetch(ctx, "user:42", memcache.CallOptions{ExpiresIn: time.Hour},
//		func() (any, error) {
//			return loadUser(42)
//		})
package memcache
