// +build !debug

package ir

// Assert is a no-op in release builds. See assert.go.
func Assert(cond bool, msg string) {}

// Assertions reports whether debug assertions are compiled in.
const Assertions = false
