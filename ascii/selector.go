package ascii

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/aurorafeint/memcache-client/internal"
)

// selectorFunc picks the index of the server responsible for a key.
type selectorFunc func(key string) int

func newSelector(h Hashing, addrs []string) selectorFunc {
	n := len(addrs)
	switch h {
	case HashCRC32:
		return func(key string) int {
			return int(crc32.ChecksumIEEE([]byte(key)) % uint32(n))
		}
	case HashLegacy:
		return func(key string) int {
			return int(javaHashCode(key) % uint32(n))
		}
	case HashConsistent:
		return newKetamaRing(addrs).pick
	default:
		return func(key string) int {
			return internal.JumpHash(xxh3.HashString(key), n)
		}
	}
}

// javaHashCode reproduces java.lang.String#hashCode with the sign dropped,
// matching clients that distribute keys with the JVM's native string hash.
func javaHashCode(key string) uint32 {
	var h int32
	for i := 0; i < len(key); i++ {
		h = 31*h + int32(key[i])
	}
	return uint32(h) & 0x7fffffff
}

// ketamaRing is an MD5-based consistent hash ring with virtual nodes. Adding
// or removing a server only remaps the keys that hashed to it.
type ketamaRing struct {
	points  []uint32
	servers map[uint32]int
}

const virtualNodesPerServer = 160

func newKetamaRing(addrs []string) *ketamaRing {
	r := &ketamaRing{servers: make(map[uint32]int)}

	for i, addr := range addrs {
		for v := 0; v < virtualNodesPerServer/4; v++ {
			sum := md5.Sum(fmt.Appendf(nil, "%s-%d", addr, v))
			// Each digest yields four ring points.
			for s := 0; s < 4; s++ {
				point := binary.LittleEndian.Uint32(sum[s*4:])
				r.points = append(r.points, point)
				r.servers[point] = i
			}
		}
	}

	sort.Slice(r.points, func(a, b int) bool { return r.points[a] < r.points[b] })
	return r
}

func (r *ketamaRing) pick(key string) int {
	sum := md5.Sum([]byte(key))
	hash := binary.LittleEndian.Uint32(sum[:4])

	idx := sort.Search(len(r.points), func(i int) bool {
		return r.points[i] >= hash
	})
	if idx == len(r.points) {
		idx = 0
	}
	return r.servers[r.points[idx]]
}
