package memcache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// fakeStore is an in-memory Store used by the package tests. It honors the
// collaborator contract: nil on miss, absolute expiries (including expiries
// in the past), create-only/overwrite-only writes and counter arithmetic on
// plain digit strings.
type fakeStore struct {
	mu     sync.Mutex
	data   map[string]fakeEntry
	stats  map[string]map[string]string
	calls  []string
	closed bool

	errHandler func(error)

	// failWith, when set, makes every operation fail with it.
	failWith error
}

type fakeEntry struct {
	value  []byte
	expiry time.Time
}

func (e fakeEntry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && !now.Before(e.expiry)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: make(map[string]fakeEntry),
		stats: map[string]map[string]string{
			"127.0.0.1:11211": {
				"version":       "1.6.21",
				"curr_items":    "3",
				"rusage_system": "0.542332",
				"bytes_written": "1024.0",
			},
		},
	}
}

func (s *fakeStore) record(op string) error {
	s.calls = append(s.calls, op)
	return s.failWith
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeStore) lookup(key string) ([]byte, bool) {
	entry, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if entry.expired(time.Now()) {
		delete(s.data, key)
		return nil, false
	}
	return entry.value, true
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("get"); err != nil {
		return nil, err
	}
	value, _ := s.lookup(key)
	return value, nil
}

func (s *fakeStore) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("get_multi"); err != nil {
		return nil, err
	}
	found := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if value, ok := s.lookup(key); ok {
			found[key] = value
		}
	}
	return found, nil
}

func (s *fakeStore) Set(ctx context.Context, key string, value []byte, expiry time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("set"); err != nil {
		return false, err
	}
	s.data[key] = fakeEntry{value: append([]byte(nil), value...), expiry: expiry}
	return true, nil
}

func (s *fakeStore) Add(ctx context.Context, key string, value []byte, expiry time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("add"); err != nil {
		return false, err
	}
	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.data[key] = fakeEntry{value: append([]byte(nil), value...), expiry: expiry}
	return true, nil
}

func (s *fakeStore) Replace(ctx context.Context, key string, value []byte, expiry time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("replace"); err != nil {
		return false, err
	}
	if _, ok := s.lookup(key); !ok {
		return false, nil
	}
	s.data[key] = fakeEntry{value: append([]byte(nil), value...), expiry: expiry}
	return true, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("delete"); err != nil {
		return err
	}
	delete(s.data, key)
	return nil
}

func (s *fakeStore) Incr(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	return s.arith(key, delta, false)
}

func (s *fakeStore) Decr(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	return s.arith(key, delta, true)
}

func (s *fakeStore) arith(key string, delta uint64, negative bool) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("arith"); err != nil {
		return 0, false, err
	}

	raw, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	current, _ := strconv.ParseUint(string(raw), 10, 64)
	if negative {
		if delta > current {
			current = 0
		} else {
			current -= delta
		}
	} else {
		current += delta
	}

	entry := s.data[key]
	entry.value = []byte(strconv.FormatUint(current, 10))
	s.data[key] = entry
	return current, true, nil
}

func (s *fakeStore) KeyExists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("key_exists"); err != nil {
		return false, err
	}
	_, ok := s.lookup(key)
	return ok, nil
}

func (s *fakeStore) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("flush_all"); err != nil {
		return err
	}
	s.data = make(map[string]fakeEntry)
	return nil
}

func (s *fakeStore) Stats(ctx context.Context) (map[string]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("stats"); err != nil {
		return nil, err
	}
	return s.stats, nil
}

func (s *fakeStore) SetErrorHandler(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errHandler = handler
}

func (s *fakeStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

var _ Store = (*fakeStore)(nil)

// recordingObserver captures observer invocations.
type recordingObserver struct {
	mu  sync.Mutex
	ops []string
}

func (o *recordingObserver) Observe(op string, key string, opts CallOptions) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops = append(o.ops, op)
}

func (o *recordingObserver) observed() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.ops...)
}
