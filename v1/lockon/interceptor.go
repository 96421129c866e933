package lockon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	lockerrors "github.com/mirkobrombin/go-lockon/v1/errors"
	"github.com/mirkobrombin/go-lockon/v1/fieldpath"
	"github.com/mirkobrombin/go-lockon/v1/intern"
	"github.com/mirkobrombin/go-lockon/v1/metrics"
)

const tracerName = "github.com/mirkobrombin/go-lockon/v1/lockon"

// Continuation runs the body of a guarded call, already bound to its
// arguments.
type Continuation func() (any, error)

// Operation is a function taking its arguments positionally, as seen by an
// interception layer.
type Operation func(ctx context.Context, args ...any) (any, error)

// Keyer lets a type choose the value it is locked on. The key replaces the
// value before interning, so non-comparable types can define their own
// equality by returning a comparable key.
type Keyer interface {
	MonitorKey() any
}

// Interceptor runs continuations under the monitor of their call.
type Interceptor struct {
	registry     *intern.Registry[any]
	resolver     *fieldpath.Resolver
	metrics      *metrics.Collectors
	logger       *slog.Logger
	slowAcquire  time.Duration
	traceEnabled bool
	tracer       trace.Tracer
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithRegistry sets the registry monitors are interned in. Interceptors
// sharing a registry share monitors.
func WithRegistry(r *intern.Registry[any]) Option {
	return func(in *Interceptor) {
		if r != nil {
			in.registry = r
		}
	}
}

// WithResolver sets the resolver used for field paths.
func WithResolver(r *fieldpath.Resolver) Option {
	return func(in *Interceptor) {
		if r != nil {
			in.resolver = r
		}
	}
}

// WithMetrics records guard counts, failures and wait times on m.
func WithMetrics(m *metrics.Collectors) Option {
	return func(in *Interceptor) {
		in.metrics = m
	}
}

// WithTracing enables OpenTelemetry spans for guarded calls, using the
// global tracer provider.
func WithTracing() Option {
	return func(in *Interceptor) {
		in.traceEnabled = true
	}
}

// WithTracerProvider enables tracing with spans created from tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(in *Interceptor) {
		if tp != nil {
			in.tracer = tp.Tracer(tracerName)
			in.traceEnabled = true
		}
	}
}

// WithLogger sets the logger used for slow acquisition warnings.
func WithLogger(l *slog.Logger) Option {
	return func(in *Interceptor) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithSlowAcquire logs a warning whenever a caller waits at least d for its
// monitor. Zero disables the warning.
func WithSlowAcquire(d time.Duration) Option {
	return func(in *Interceptor) {
		in.slowAcquire = d
	}
}

// New returns an Interceptor. Without options it interns into
// intern.Global() and resolves paths with fieldpath.Default().
func New(opts ...Option) *Interceptor {
	in := &Interceptor{
		registry: intern.Global(),
		resolver: fieldpath.Default(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.traceEnabled && in.tracer == nil {
		in.tracer = otel.Tracer(tracerName)
	}
	return in
}

var defaultInterceptor = New()

// Guard runs fn under the monitor of call using the default Interceptor.
func Guard(ctx context.Context, call Call, fn Continuation) (any, error) {
	return defaultInterceptor.Guard(ctx, call, fn)
}

// Guard resolves the monitor of call, waits until it holds it exclusively
// and runs fn exactly once. The monitor is released on every exit path,
// panics included. Errors returned by fn are returned unchanged; errors from
// resolving the monitor are returned before fn runs.
//
// ctx only carries tracing; waiting for the monitor cannot be cancelled.
func (in *Interceptor) Guard(ctx context.Context, call Call, fn Continuation) (any, error) {
	monitor, err := in.Monitor(call)
	if err != nil {
		in.metrics.ObserveFailure(failureReason(err))
		return nil, err
	}
	return in.run(ctx, monitor, fn)
}

// Monitor resolves the monitor value of call without locking it.
func (in *Interceptor) Monitor(call Call) (any, error) {
	index, path, err := Locate(call.Markers)
	if err != nil {
		return nil, err
	}
	if index >= len(call.Args) {
		return nil, fmt.Errorf("%w: position %d, %d arguments", lockerrors.ErrArgumentIndex, index, len(call.Args))
	}
	v, err := in.resolver.Resolve(call.Args[index], path)
	if err != nil {
		return nil, err
	}
	return normalize(v)
}

// Wrap returns op guarded by the input marked in markers. Marker errors are
// reported when the returned operation is called.
func (in *Interceptor) Wrap(markers []*Marker, op Operation) Operation {
	return func(ctx context.Context, args ...any) (any, error) {
		call := Call{Args: args, Markers: markers}
		return in.Guard(ctx, call, func() (any, error) {
			return op(ctx, args...)
		})
	}
}

func (in *Interceptor) run(ctx context.Context, monitor any, fn Continuation) (any, error) {
	var span trace.Span
	if in.traceEnabled {
		_, span = in.tracer.Start(ctx, "Interceptor.Guard")
		defer span.End()
	}

	ref := in.registry.Intern(monitor)
	start := time.Now()
	ref.Lock()
	defer func() {
		ref.Unlock()
		ref.Release()
	}()
	wait := time.Since(start)

	in.metrics.ObserveWait(wait.Seconds())
	in.metrics.ObserveGuard()
	if in.traceEnabled {
		span.SetAttributes(
			attribute.String("lockon.monitor.type", fmt.Sprintf("%T", ref.Handle().Key())),
			attribute.Int64("lockon.wait_us", wait.Microseconds()),
			attribute.Int64("lockon.monitor.generation", int64(ref.Handle().Generation())),
		)
	}
	if in.slowAcquire > 0 && wait >= in.slowAcquire {
		in.logger.Warn("lockon: slow monitor acquisition", "monitor_type", fmt.Sprintf("%T", monitor), "wait", wait)
	}

	res, err := fn()
	if err != nil && in.traceEnabled {
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// normalize applies Keyer and rejects values that cannot be interned.
func normalize(v any) (any, error) {
	if isNil(v) {
		return nil, lockerrors.ErrNilMonitor
	}
	if k, ok := v.(Keyer); ok {
		v = k.MonitorKey()
		if isNil(v) {
			return nil, fmt.Errorf("%w: MonitorKey of %T", lockerrors.ErrNilMonitor, k)
		}
	}
	if !reflect.ValueOf(v).Comparable() {
		return nil, fmt.Errorf("%w: %T", lockerrors.ErrUncomparableMonitor, v)
	}
	return v, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, lockerrors.ErrMarkerNotFound):
		return "marker_not_found"
	case errors.Is(err, lockerrors.ErrAmbiguousMarker):
		return "ambiguous_marker"
	case errors.Is(err, lockerrors.ErrArgumentIndex):
		return "argument_index"
	case errors.Is(err, lockerrors.ErrFieldNotFound):
		return "field_not_found"
	case errors.Is(err, lockerrors.ErrNullTraversal):
		return "null_traversal"
	case errors.Is(err, lockerrors.ErrNilMonitor):
		return "nil_monitor"
	case errors.Is(err, lockerrors.ErrUncomparableMonitor):
		return "uncomparable_monitor"
	}
	return "other"
}
