// Package frame is the tabular data model shared by every stage: a Frame is
// an ordered set of named, homogeneous columns (Series) of equal length.
//
// Frames and Series are values that stages read but never modify; operations
// such as Take, Select and HConcat return new frames. A zero Series stands for
// an absent target vector.
package frame
