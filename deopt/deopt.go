// Package deopt defines the bailout reasons attached to guard checks.
//
// A guard hoisted above a loop is tied to a reason. When the guard fails at
// runtime the compiled code traps and execution falls back to a slower tier;
// the reason tells the recompilation which speculation went wrong.
package deopt

// Reason tags a trap call or placeholder predicate.
type Reason int

const (
	// None marks a trap that does not belong to any predicate.
	None Reason = iota
	// LoopLimitCheck guards against induction-variable overflow when a loop
	// is converted to counted form.
	LoopLimitCheck
	// ProfiledLoop is a check hoisted based on profiling information.
	ProfiledLoop
	// Loop is a check hoisted out of every iteration of a loop.
	Loop
)

var reasonNames = [...]string{
	None:           "none",
	LoopLimitCheck: "loop_limit_check",
	ProfiledLoop:   "profiled_loop",
	Loop:           "loop",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// IsPredicateReason reports whether r is one of the reasons a hoisted guard
// may carry.
func (r Reason) IsPredicateReason() bool {
	return r == LoopLimitCheck || r == ProfiledLoop || r == Loop
}

// Reasons lists the predicate reasons in chain order, outermost first.
func Reasons() []Reason {
	return []Reason{Loop, ProfiledLoop, LoopLimitCheck}
}
