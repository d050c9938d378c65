package ascii

import (
	"context"
	"time"

	"github.com/jackc/puddle/v2"
	"go.uber.org/zap"
)

// connPool manages the connections to a single server.
type connPool struct {
	addr   string
	cfg    Config
	pool   *puddle.Pool[*conn]
	logger *zap.Logger
	stop   chan struct{}
}

func newConnPool(addr string, cfg Config) (*connPool, error) {
	p := &connPool{
		addr:   addr,
		cfg:    cfg,
		logger: cfg.Logger.With(zap.String("server", addr)),
		stop:   make(chan struct{}),
	}

	pool, err := puddle.NewPool(&puddle.Config[*conn]{
		Constructor: func(ctx context.Context) (*conn, error) {
			return dialConn(ctx, addr, cfg)
		},
		Destructor: func(c *conn) {
			_ = c.close()
		},
		MaxSize: int32(cfg.MaxSize),
	})
	if err != nil {
		return nil, err
	}
	p.pool = pool

	go p.warm()
	if cfg.MaintenanceInterval > 0 {
		go p.maintain()
	}
	return p, nil
}

// warm pre-dials the initial connections, each under its own ConnectTimeout.
// Failures are tolerated: the pool dials lazily on demand anyway.
func (p *connPool) warm() {
	for i := 0; i < p.cfg.InitialSize; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectTimeout)
		err := p.pool.CreateResource(ctx)
		cancel()
		if err != nil {
			p.logger.Debug("pool warm-up stopped", zap.Error(err))
			return
		}
	}
}

// with runs fn with a pooled connection. Connections are destroyed after any
// error that may have left the protocol stream out of sync.
func (p *connPool) with(ctx context.Context, fn func(*conn) error) error {
	if p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	err = fn(res.Value())
	if err != nil && !recoverable(err) {
		res.Destroy()
		return err
	}
	res.Release()
	return err
}

// maintain periodically destroys connections that sat idle longer than
// MaxIdle (keeping MinSize around) and, with AliveCheck, the ones that no
// longer answer.
func (p *connPool) maintain() {
	ticker := time.NewTicker(p.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *connPool) sweep() {
	idle := p.pool.AcquireAllIdle()
	total := int(p.pool.Stat().TotalResources())

	for _, res := range idle {
		if res.IdleDuration() > p.cfg.MaxIdle && total > p.cfg.MinSize {
			res.Destroy()
			total--
			continue
		}
		if p.cfg.AliveCheck {
			if err := res.Value().version(); err != nil {
				p.logger.Debug("idle connection failed alive check", zap.Error(err))
				res.Destroy()
				total--
				continue
			}
		}
		res.ReleaseUnused()
	}
}

func (p *connPool) close() {
	close(p.stop)
	p.pool.Close()
}
