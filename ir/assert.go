// +build debug

package ir

// Assert aborts compilation of the current unit when cond does not hold.
// Structural invariants are only enforced in debug builds; release builds
// compile this to a no-op.
func Assert(cond bool, msg string) {
	if !cond {
		panic("ir: assertion failed: " + msg)
	}
}

// Assertions reports whether debug assertions are compiled in.
const Assertions = true
