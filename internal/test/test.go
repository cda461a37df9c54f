// Package test wraps testing.T with the few assertions the etw tests use.
package test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// T is a testing.T with assertion helpers. Every helper stops the test on failure.
type T struct {
	*testing.T
}

// FromT wraps t.
func FromT(t *testing.T) *T {
	return &T{T: t}
}

// CheckErr fails the test if err is not nil.
func (t *T) CheckErr(err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

// ExpectErr fails the test unless err matches target with errors.Is.
// A nil target accepts any non-nil error.
func (t *T) ExpectErr(err, target error) {
	t.Helper()
	switch {
	case err == nil:
		t.Fatalf("expected an error, got nil")
	case target != nil && !errors.Is(err, target):
		t.Fatalf("error %q does not match %q", err, target)
	}
}

// Assert fails the test if cond is false. msg is formatted with fmt.Sprint.
func (t *T) Assert(cond bool, msg ...any) {
	t.Helper()
	if !cond {
		if len(msg) > 0 {
			t.Fatalf("assertion failed: %s", fmt.Sprint(msg...))
		}
		t.Fatal("assertion failed")
	}
}

// Equal fails the test with a diff when got and want differ.
func (t *T) Equal(got, want any, opts ...cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
