package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func Diff(a, b interface{}, opts ...cmp.Option) string {
	return cmp.Diff(a, b, opts...)
}

func ExpectNoDiff(tb testing.TB, expected, received interface{}, opts ...cmp.Option) bool {
	tb.Helper()
	if diff := Diff(expected, received, opts...); diff != "" {
		tb.Errorf("unexpected diff:\n%s", diff)
		tb.Logf("expected:\n%#v", expected)
		tb.Logf("received:\n%#v", received)
		return false
	}
	return true
}

func IgnoreUnexported(types ...interface{}) cmp.Option {
	return cmpopts.IgnoreUnexported(types...)
}

func AllowUnexported(types ...interface{}) cmp.Option {
	return cmp.AllowUnexported(types...)
}
