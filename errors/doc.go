// Package errors provides the error taxonomy for mlkit stages.
//
// Every failure raised by the core is an *AppError carrying a machine-readable
// code, the name of the stage that failed and details describing the
// condition (fold index, expected and actual shapes). Composites propagate the
// first child failure unchanged, so callers can match on the code with HasCode
// regardless of how deep in the tree the error originated.
package errors
