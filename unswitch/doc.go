// Package unswitch hoists loop-invariant tests out of loops.
//
// A loop containing an invariant, non-exiting test is cloned into a fast
// and a slow version selected by a single copy of the test placed before
// both. The fast loop keeps only the true path of the test, the slow loop
// only the false path. Predicates above the original loop are
// redistributed: hoisted guard checks stay shared above the selector,
// templates move below it into both copies, and parse predicate
// placeholders follow the templates when it is safe to hoist further
// checks into the copies.
package unswitch
