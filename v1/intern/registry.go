package intern

import (
	"hash/maphash"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/mirkobrombin/go-lockon/v1/metrics"
)

const defaultShards = 32

// Handle is the lock shared by every holder of an equal key.
type Handle[K comparable] struct {
	mu   sync.Mutex
	key  K
	gen  uint64
	refs int // guarded by the owning shard
}

// Key returns the value the handle was created for.
func (h *Handle[K]) Key() K { return h.key }

// Generation returns the registry-wide sequence number assigned when the
// handle was created. A key interned again after reclamation gets a new one.
func (h *Handle[K]) Generation() uint64 { return h.gen }

// Ref is one holder's reference to a Handle.
type Ref[K comparable] struct {
	reg  *Registry[K]
	h    *Handle[K]
	once sync.Once
}

// Handle returns the shared handle behind the reference.
func (r *Ref[K]) Handle() *Handle[K] { return r.h }

// Lock blocks until the handle is held exclusively.
func (r *Ref[K]) Lock() { r.h.mu.Lock() }

// TryLock acquires the handle if it is free and reports whether it did.
func (r *Ref[K]) TryLock() bool { return r.h.mu.TryLock() }

// Unlock releases exclusive ownership of the handle.
func (r *Ref[K]) Unlock() { r.h.mu.Unlock() }

// Release drops the reference. It must be called after Unlock. Calling it
// more than once has no effect.
func (r *Ref[K]) Release() {
	r.once.Do(func() { r.reg.release(r.h) })
}

type shard[K comparable] struct {
	mu      sync.Mutex
	handles map[K]*Handle[K]
}

type config struct {
	shards  int
	metrics *metrics.Collectors
}

// Option configures a Registry.
type Option func(*config)

// WithShards sets the number of table shards. The value is rounded up to a
// power of two; non-positive values keep the default.
func WithShards(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.shards = n
		}
	}
}

// WithMetrics reports the number of live handles on m.MonitorGauge.
func WithMetrics(m *metrics.Collectors) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Registry interns keys of type K into shared handles.
type Registry[K comparable] struct {
	seed    maphash.Seed
	shards  []shard[K]
	mask    uint64
	gen     atomic.Uint64
	metrics *metrics.Collectors
}

// NewRegistry returns an empty registry.
func NewRegistry[K comparable](opts ...Option) *Registry[K] {
	cfg := config{shards: defaultShards}
	for _, opt := range opts {
		opt(&cfg)
	}
	n := 1
	for n < cfg.shards {
		n <<= 1
	}
	r := &Registry[K]{
		seed:    maphash.MakeSeed(),
		shards:  make([]shard[K], n),
		mask:    uint64(n - 1),
		metrics: cfg.metrics,
	}
	for i := range r.shards {
		r.shards[i].handles = make(map[K]*Handle[K])
	}
	return r
}

var global = NewRegistry[any]()

// Global returns the process-wide registry used when no registry is given.
func Global() *Registry[any] { return global }

var typed sync.Map // reflect.Type -> *Registry[K]

// For returns the process-wide registry for keys of type K. For[any] is
// Global.
func For[K comparable]() *Registry[K] {
	t := reflect.TypeFor[K]()
	if t == reflect.TypeFor[any]() {
		return any(global).(*Registry[K])
	}
	if r, ok := typed.Load(t); ok {
		return r.(*Registry[K])
	}
	r, _ := typed.LoadOrStore(t, NewRegistry[K]())
	return r.(*Registry[K])
}

func (r *Registry[K]) shardFor(k K) *shard[K] {
	return &r.shards[maphash.Comparable(r.seed, k)&r.mask]
}

// Intern returns a reference to the handle shared by every live key equal to
// k, creating one if none exists. Like a map lookup, it panics when K is an
// interface type and k holds a value that cannot be compared.
func (r *Registry[K]) Intern(k K) *Ref[K] {
	if k != k {
		// NaN-like keys equal nothing, not even themselves.
		return &Ref[K]{reg: r, h: &Handle[K]{key: k, gen: r.gen.Add(1), refs: 1}}
	}
	s := r.shardFor(k)
	s.mu.Lock()
	h, ok := s.handles[k]
	if !ok {
		h = &Handle[K]{key: k, gen: r.gen.Add(1)}
		s.handles[k] = h
		r.metrics.MonitorAdded()
	}
	h.refs++
	s.mu.Unlock()
	return &Ref[K]{reg: r, h: h}
}

func (r *Registry[K]) release(h *Handle[K]) {
	if h.key != h.key {
		return
	}
	s := r.shardFor(h.key)
	s.mu.Lock()
	h.refs--
	if h.refs == 0 && s.handles[h.key] == h {
		delete(s.handles, h.key)
		r.metrics.MonitorRemoved()
	}
	s.mu.Unlock()
}

// Len returns the number of live handles.
func (r *Registry[K]) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		n += len(s.handles)
		s.mu.Unlock()
	}
	return n
}

// Do runs fn while holding the handle for k. The handle is unlocked and
// released on every exit path, including panics.
func (r *Registry[K]) Do(k K, fn func() error) error {
	ref := r.Intern(k)
	ref.Lock()
	defer func() {
		ref.Unlock()
		ref.Release()
	}()
	return fn()
}
