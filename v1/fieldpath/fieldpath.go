// Package fieldpath resolves dot separated field paths against Go values.
//
// A path such as "addr.city" reads the field addr of the root value and then
// the field city of the result. Pointers and interfaces are followed on the
// way, unexported fields are readable, and promoted fields of embedded
// structs are found by name. The empty path resolves to the root itself.
package fieldpath

import (
	"fmt"
	"reflect"
	"strings"
	"unsafe"

	"github.com/dgraph-io/ristretto"

	lockerrors "github.com/mirkobrombin/go-lockon/v1/errors"
)

const separator = "."

// Path is a parsed field path.
type Path []string

// Parse splits a dot separated path. The empty string yields an empty Path.
func Parse(s string) Path {
	if s == "" {
		return nil
	}
	return strings.Split(s, separator)
}

func (p Path) String() string {
	return strings.Join(p, separator)
}

type layout struct {
	typ   reflect.Type
	index []int
	ok    bool
}

type config struct {
	cacheSize int64
	noCache   bool
}

// Option configures a Resolver.
type Option func(*config)

// WithCacheSize sets how many field layouts the resolver keeps.
func WithCacheSize(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

// WithoutCache disables the field layout cache.
func WithoutCache() Option {
	return func(c *config) {
		c.noCache = true
	}
}

// Resolver resolves field paths. Field lookups are cached per struct type and
// segment, since a type's layout never changes.
type Resolver struct {
	cache *ristretto.Cache
}

// NewResolver returns a Resolver. It panics if the layout cache cannot be
// created from the given options.
func NewResolver(opts ...Option) *Resolver {
	cfg := config{cacheSize: 1 << 12}
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Resolver{}
	if cfg.noCache {
		return r
	}
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        cfg.cacheSize * 10,
		MaxCost:            cfg.cacheSize,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		panic(err)
	}
	r.cache = rc
	return r
}

// Close stops the cache goroutines.
func (r *Resolver) Close() {
	if r.cache != nil {
		r.cache.Close()
	}
}

var defaultResolver = NewResolver()

// Default returns the shared Resolver used by Resolve and Compile.
func Default() *Resolver { return defaultResolver }

// Resolve resolves path against root using a shared Resolver.
func Resolve(root any, path string) (any, error) {
	return defaultResolver.ResolvePath(root, Parse(path))
}

// Resolve resolves a dot separated path against root.
func (r *Resolver) Resolve(root any, path string) (any, error) {
	return r.ResolvePath(root, Parse(path))
}

// ResolvePath walks p starting at root and returns the final value.
//
// It fails with errors.ErrNullTraversal when a nil value is met before the
// path is exhausted, and with errors.ErrFieldNotFound when a segment does not
// name a field of the current value.
func (r *Resolver) ResolvePath(root any, p Path) (any, error) {
	if len(p) == 0 {
		return root, nil
	}
	v := reflect.ValueOf(root)
	for i, seg := range p {
		var ok bool
		if v, ok = indirect(v); !ok {
			return nil, fmt.Errorf("%w: %s is nil", lockerrors.ErrNullTraversal, describe(p[:i]))
		}
		if v.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: %q on non-struct %s", lockerrors.ErrFieldNotFound, seg, v.Type())
		}
		l := r.lookup(v.Type(), seg)
		if !l.ok {
			return nil, fmt.Errorf("%w: %q on %s", lockerrors.ErrFieldNotFound, seg, v.Type())
		}
		f, err := v.FieldByIndexErr(l.index)
		if err != nil {
			return nil, fmt.Errorf("%w: embedded struct of %s is nil", lockerrors.ErrNullTraversal, describe(p[:i+1]))
		}
		v = expose(f)
	}
	return v.Interface(), nil
}

func describe(p Path) string {
	if len(p) == 0 {
		return "root"
	}
	return fmt.Sprintf("%q", p.String())
}

func (r *Resolver) lookup(t reflect.Type, name string) layout {
	if r.cache == nil {
		return findField(t, name)
	}
	key := layoutKey(t, name)
	if cached, ok := r.cache.Get(key); ok {
		if l, ok := cached.(layout); ok && l.typ == t {
			return l
		}
		// A different type with the same printed name; don't evict it.
		return findField(t, name)
	}
	l := findField(t, name)
	r.cache.Set(key, l, 1)
	return l
}

func layoutKey(t reflect.Type, name string) string {
	return t.PkgPath() + "\x00" + t.String() + "\x00" + name
}

func findField(t reflect.Type, name string) layout {
	f, ok := t.FieldByName(name)
	if !ok {
		return layout{typ: t}
	}
	return layout{typ: t, index: f.Index, ok: true}
}

// indirect follows pointers and interfaces. It reports false when it meets a
// nil value. The returned value is always addressable.
func indirect(v reflect.Value) (reflect.Value, bool) {
	for {
		if !v.IsValid() {
			return v, false
		}
		switch v.Kind() {
		case reflect.Pointer:
			if v.IsNil() {
				return v, false
			}
			v = v.Elem()
		case reflect.Interface:
			if v.IsNil() {
				return v, false
			}
			v = v.Elem()
		default:
			if !v.CanAddr() {
				c := reflect.New(v.Type()).Elem()
				c.Set(v)
				v = c
			}
			return v, true
		}
	}
}

// expose returns a readable view of a field reached through an unexported
// name. Fields of addressable structs are addressable, so the view aliases
// the original storage.
func expose(v reflect.Value) reflect.Value {
	if v.CanInterface() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}
