// Package looptree builds the loop nesting forest of a graph and answers the
// structural queries the loop transformations need: membership, invariance,
// exit tests and cloning cost.
//
// The forest must be rebuilt after a transformation that creates or removes
// loops; membership sets are snapshots, not live views.
package looptree
