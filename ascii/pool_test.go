package ascii

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolWarmTimesOutPerDial(t *testing.T) {
	// Each warm-up dial takes most of a ConnectTimeout. The pool must still
	// reach InitialSize: the timeout bounds a single dial, not the whole pass.
	cfg := Config{
		InitialSize:    3,
		MaxSize:        4,
		ConnectTimeout: 100 * time.Millisecond,
		Dial: func(ctx context.Context, addr string) (net.Conn, error) {
			select {
			case <-time.After(60 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			local, _ := net.Pipe()
			return local, nil
		},
	}.withDefaults()

	pool, err := newConnPool("test:11211", cfg)
	require.NoError(t, err)
	defer pool.close()

	require.Eventually(t, func() bool {
		return pool.pool.Stat().TotalResources() == int32(cfg.InitialSize)
	}, 2*time.Second, 20*time.Millisecond)
}
