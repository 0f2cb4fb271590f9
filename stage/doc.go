// Package stage defines the capability contract every pipeline node
// satisfies: a named unit that is fit on features and an optional target, then
// transforms features into features.
//
// Leaves (learners and transformers) and composites (chains, unions,
// selections, ensembles) implement the same Stage interface, so composites
// recurse into their children without inspecting concrete types.
//
// Fit is the only operation that mutates a stage. Once fit, Transform is a
// pure function of its input and may be called repeatedly and concurrently.
package stage
