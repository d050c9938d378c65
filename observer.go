package memcache

import "go.uber.org/zap"

// Observer is invoked around every cache operation. Implementations must be
// safe for concurrent use and should return quickly; they run on the caller's
// goroutine.
type Observer interface {
	Observe(op string, key string, opts CallOptions)
}

type nopObserver struct{}

func (nopObserver) Observe(string, string, CallOptions) {}

// LogObserver logs every operation at debug level.
type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observe(op string, key string, opts CallOptions) {
	o.logger.Debug("cache operation",
		zap.String("op", op),
		zap.String("key", key),
		zap.Duration("expires_in", opts.ExpiresIn),
		zap.Bool("raw", opts.Raw),
	)
}
