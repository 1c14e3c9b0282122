package testing

import (
	"reflect"
	"strings"
	"testing"
)

// Assertions groups assertion helpers around one *testing.T. Failures
// are reported through t.Errorf and remembered, so a scenario can keep
// checking after the first miss and still report overall failure.
type Assertions struct {
	t      *testing.T
	failed bool
}

// NewAssertions creates an assertion helper bound to t.
func NewAssertions(t *testing.T) *Assertions {
	return &Assertions{t: t}
}

// Failed reports whether any assertion so far has failed.
func (a *Assertions) Failed() bool {
	return a.failed
}

func (a *Assertions) fail(format string, args ...any) {
	a.t.Helper()
	a.failed = true
	a.t.Errorf(format, args...)
}

// AssertEqual fails unless expected == actual.
func (a *Assertions) AssertEqual(expected, actual any, msg string) {
	a.t.Helper()
	if expected != actual {
		a.fail("%s: want %v, got %v", msg, expected, actual)
	}
}

// AssertTrue fails unless value is true.
func (a *Assertions) AssertTrue(value bool, msg string) {
	a.t.Helper()
	if !value {
		a.fail("%s: want true", msg)
	}
}

// AssertFalse fails unless value is false.
func (a *Assertions) AssertFalse(value bool, msg string) {
	a.t.Helper()
	if value {
		a.fail("%s: want false", msg)
	}
}

// AssertContains fails unless s contains substr.
func (a *Assertions) AssertContains(s, substr, msg string) {
	a.t.Helper()
	if !strings.Contains(s, substr) {
		a.fail("%s: %q does not contain %q", msg, s, substr)
	}
}

// AssertError fails when err is nil.
func (a *Assertions) AssertError(err error, msg string) {
	a.t.Helper()
	if err == nil {
		a.fail("%s: want error, got nil", msg)
	}
}

// AssertNoError fails when err is non-nil.
func (a *Assertions) AssertNoError(err error, msg string) {
	a.t.Helper()
	if err != nil {
		a.fail("%s: unexpected error: %v", msg, err)
	}
}

// AssertErrorContains fails unless err is non-nil and its message
// contains substr.
func (a *Assertions) AssertErrorContains(err error, substr, msg string) {
	a.t.Helper()
	switch {
	case err == nil:
		a.fail("%s: want error containing %q, got nil", msg, substr)
	case !strings.Contains(err.Error(), substr):
		a.fail("%s: error %q does not contain %q", msg, err.Error(), substr)
	}
}

// AssertLen fails unless value (string, slice, map, array or channel)
// has the expected length.
func (a *Assertions) AssertLen(value any, expected int, msg string) {
	a.t.Helper()
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		if v.Len() != expected {
			a.fail("%s: want length %d, got %d", msg, expected, v.Len())
		}
	default:
		a.fail("%s: value of type %T has no length", msg, value)
	}
}
