package fieldpath

import (
	"fmt"
	"reflect"

	lockerrors "github.com/mirkobrombin/go-lockon/v1/errors"
)

// Accessor extracts a value from a T.
type Accessor[T any] func(T) (any, error)

// Compile checks path against the static type T and returns an Accessor for
// it. Segments that can be checked statically fail here with
// errors.ErrFieldNotFound; segments below an interface field are only checked
// when the accessor runs. A nil r uses the shared Resolver.
func Compile[T any](r *Resolver, path string) (Accessor[T], error) {
	if r == nil {
		r = defaultResolver
	}
	p := Parse(path)
	if err := Check(reflect.TypeFor[T](), p); err != nil {
		return nil, err
	}
	return func(v T) (any, error) {
		return r.ResolvePath(v, p)
	}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile[T any](r *Resolver, path string) Accessor[T] {
	a, err := Compile[T](r, path)
	if err != nil {
		panic(err)
	}
	return a
}

// Check verifies that every statically known segment of p names a field
// reachable from t.
func Check(t reflect.Type, p Path) error {
	for _, seg := range p {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() == reflect.Interface {
			return nil
		}
		if t.Kind() != reflect.Struct {
			return fmt.Errorf("%w: %q on non-struct %s", lockerrors.ErrFieldNotFound, seg, t)
		}
		f, ok := t.FieldByName(seg)
		if !ok {
			return fmt.Errorf("%w: %q on %s", lockerrors.ErrFieldNotFound, seg, t)
		}
		t = f.Type
	}
	return nil
}
