// Package predicate manages the guard checks placed above loops.
//
// A predicate is a control-flow checkpoint between a loop head and the code
// before it. Four kinds exist:
//
//   - Parse predicate: a placeholder tagged with a bailout reason, marking
//     where guards of that reason may be hoisted later.
//   - Runtime predicate: a concrete hoisted guard, checked once per loop
//     entry, trapping to a slower tier when the speculation fails.
//   - Template assertion predicate: an always-true check parameterized over
//     opaque placeholders for a loop's initial value and stride. Not bound to
//     any loop instance; loop splitting clones and specializes it.
//   - Initialized assertion predicate: a template instantiated with concrete
//     values, paired with a Halt on its failing path. The failing path is
//     unreachable by construction; this is a precondition, not a check.
//
// The predicates above a loop form a strictly linear chain: an assertion
// block directly above the head, then one block per reason (loop limit
// check, profiled loop, loop), each holding at most one parse predicate and
// any number of runtime predicates of that reason.
package predicate
