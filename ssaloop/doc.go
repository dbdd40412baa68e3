// Package ssaloop feeds the loop optimizer from Go source code.
//
// It builds SSA IR for a program with golang.org/x/tools/go/ssa, scans the
// functions for counted loops (an index starting at a constant, stepped by
// a constant, bounded by a comparison), and materializes each one as a
// graph the predicate and unswitch packages operate on.
//
// There are two ways of building the SSA IR:
//
// Build from a list of source files
//
// This is the normal usage, where a number of files are supplied (usually
// as command line arguments) and all of them are considered part of the
// same package.
//
// Build from a Reader
//
// This is mostly used for testing or demo, where the input source code is
// read from a given io.Reader.
//
package ssaloop
