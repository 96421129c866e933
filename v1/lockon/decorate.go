package lockon

import (
	"context"

	"github.com/mirkobrombin/go-lockon/v1/fieldpath"
	"github.com/mirkobrombin/go-lockon/v1/intern"
)

// Decorate returns op guarded by the key key derives from its input. Calls
// whose keys are equal run one at a time. A nil reg uses intern.For[K](), so
// every operation decorated with a nil registry and the same key type shares
// its monitors.
func Decorate[K comparable, A, R any](reg *intern.Registry[K], key func(A) K, op func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	if reg == nil {
		reg = intern.For[K]()
	}
	return func(ctx context.Context, a A) (R, error) {
		ref := reg.Intern(key(a))
		ref.Lock()
		defer func() {
			ref.Unlock()
			ref.Release()
		}()
		return op(ctx, a)
	}
}

// Decorate2 is Decorate for operations with two inputs. key may lock on
// either of them.
func Decorate2[K comparable, A, B, R any](reg *intern.Registry[K], key func(A, B) K, op func(context.Context, A, B) (R, error)) func(context.Context, A, B) (R, error) {
	if reg == nil {
		reg = intern.For[K]()
	}
	return func(ctx context.Context, a A, b B) (R, error) {
		ref := reg.Intern(key(a, b))
		ref.Lock()
		defer func() {
			ref.Unlock()
			ref.Release()
		}()
		return op(ctx, a, b)
	}
}

// DecoratePath guards op on the value found at path inside its input. The
// path is checked against A when DecoratePath is called; values below
// interface fields are checked per call, and resolution errors are returned
// without running op. A nil in uses the default Interceptor.
func DecoratePath[A, R any](in *Interceptor, path string, op func(context.Context, A) (R, error)) (func(context.Context, A) (R, error), error) {
	if in == nil {
		in = defaultInterceptor
	}
	get, err := fieldpath.Compile[A](in.resolver, path)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, a A) (R, error) {
		var out R
		v, err := get(a)
		if err == nil {
			v, err = normalize(v)
		}
		if err != nil {
			in.metrics.ObserveFailure(failureReason(err))
			return out, err
		}
		_, err = in.run(ctx, v, func() (any, error) {
			var opErr error
			out, opErr = op(ctx, a)
			return nil, opErr
		})
		return out, err
	}, nil
}
