// Package errors holds the sentinel errors returned by lockon. Callers match
// them with errors.Is; the returned errors usually wrap one of these with the
// offending position, field or type.
package errors

import "errors"

var (
	// ErrMarkerNotFound is returned when no input of a guarded call carries
	// the lock marker.
	ErrMarkerNotFound = errors.New("lockon: lock marker not found")
	// ErrAmbiguousMarker is returned when more than one input carries the
	// lock marker.
	ErrAmbiguousMarker = errors.New("lockon: lock marker present on more than one input")
	// ErrArgumentIndex is returned when the marked position has no matching
	// argument in the call.
	ErrArgumentIndex = errors.New("lockon: marked argument missing from call")

	// ErrFieldNotFound is returned when a field path segment names a field
	// that does not exist on the current value.
	ErrFieldNotFound = errors.New("lockon: field not found")
	// ErrNullTraversal is returned when an intermediate value of a field path
	// is nil.
	ErrNullTraversal = errors.New("lockon: nil value in field path")

	// ErrNilMonitor is returned when the resolved monitor value is nil.
	ErrNilMonitor = errors.New("lockon: nil monitor value")
	// ErrUncomparableMonitor is returned when the resolved monitor value
	// cannot be compared with ==.
	ErrUncomparableMonitor = errors.New("lockon: monitor value is not comparable")
)
