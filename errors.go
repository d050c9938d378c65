package memcache

import "errors"

var (
	// ErrReadonly is returned by every mutating operation on a client
	// constructed with Options.Readonly, before any network interaction.
	ErrReadonly = errors.New("memcache: client is readonly")

	// ErrNoServers is returned by New when no server addresses are given.
	ErrNoServers = errors.New("memcache: no servers provided")
)
