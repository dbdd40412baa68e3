// Package ir provides the node graph the loop optimizer operates on.
//
// Nodes live in an arena owned by a Graph and are referenced by index. The
// index is monotonically increasing and never reused, so "was this node
// created after point X" can be answered by comparing indices; the loop
// transformations rely on this to tell cloned nodes from originals.
//
// Control flow and data flow share one node space. A control node's first
// input is its control predecessor (loop heads and regions take several
// control inputs). Data nodes are anchored to a control node through
// RegisterNode, which is how loop membership is decided.
package ir
