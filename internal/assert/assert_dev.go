//go:build !release

// Package assert provides invariant checks for states the code treats as unreachable. A failed
// check panics with the formatted message; release builds compile the checks away.
package assert

import "fmt"

// That panics with the formatted message when cond is false.
func That(cond bool, format string, args ...any) { //nolint:goprintffuncname // it's ok
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
