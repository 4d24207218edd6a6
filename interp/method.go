package interp

import (
	"errors"
	"fmt"

	"github.com/jarvis394/snapshot-interpolation/lerp"
	"github.com/jarvis394/snapshot-interpolation/snapshot"
)

// Method selects how a field is blended between two snapshots.
type Method string

const (
	MethodLinear Method = "linear"
	MethodDeg    Method = "deg"
	MethodRad    Method = "rad"
	MethodQuat   Method = "quat"
)

// Methods maps field names to the method used to blend them. A field listed
// with an empty method is a caller error.
type Methods map[string]Method

// ParseMethod validates a method name read from configuration.
func ParseMethod(name string) (Method, error) {
	switch m := Method(name); m {
	case MethodLinear, MethodDeg, MethodRad, MethodQuat:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownMethod, name)
	}
}

var (
	// ErrUnsupportedType is returned when a string field is blended.
	ErrUnsupportedType = errors.New("interp: cannot interpolate string values")
	// ErrUnknownMethod is returned when a method does not apply to the value kinds.
	ErrUnknownMethod = errors.New("interp: no interpolation method")
	// ErrMissingMethod is returned when a requested field has no method.
	ErrMissingMethod = errors.New("interp: no method specified")
)

// FieldError reports which field and method caused an interpolation failure.
type FieldError struct {
	Field  string
	Method Method
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q (method %q): %v", e.Field, e.Method, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// LerpValue blends start towards end by t using method. When either end is
// absent the result is absent and no error is returned.
func LerpValue(method Method, start, end snapshot.Value, t float64) (snapshot.Value, error) {
	if start.IsAbsent() || end.IsAbsent() {
		return snapshot.Absent(), nil
	}
	if start.Kind() == snapshot.KindString || end.Kind() == snapshot.KindString {
		return snapshot.Value{}, fmt.Errorf("%w, got %s and %s", ErrUnsupportedType, start, end)
	}

	if a, ok := start.Number(); ok {
		if b, ok := end.Number(); ok {
			switch method {
			case MethodLinear:
				return snapshot.Number(lerp.Linear(a, b, t)), nil
			case MethodDeg:
				return snapshot.Number(lerp.Degrees(a, b, t)), nil
			case MethodRad:
				return snapshot.Number(lerp.Radians(a, b, t)), nil
			}
		}
	}

	if qa, ok := start.Quat(); ok {
		if qb, ok := end.Quat(); ok && method == MethodQuat {
			return snapshot.Quaternion(lerp.QuatSlerp(qa, qb, t)), nil
		}
	}

	return snapshot.Value{}, fmt.Errorf("%w %q for %s and %s", ErrUnknownMethod, method, start.Kind(), end.Kind())
}
