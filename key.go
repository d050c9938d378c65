package memcache

import (
	"net"
	"strconv"
)

// DefaultPort is appended to server addresses given without a port.
const DefaultPort = 11211

// wireKey prefixes a logical key with the namespace. The transformation is
// one-way: reads never strip the prefix, callers always work with logical keys.
func wireKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}

// normalizeAddr resolves a server address to host:port form, defaulting the
// port to DefaultPort when none is given.
func normalizeAddr(addr string) string {
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
}

func normalizeAddrs(addrs []string) []string {
	out := make([]string, len(addrs))
	for i, addr := range addrs {
		out[i] = normalizeAddr(addr)
	}
	return out
}
