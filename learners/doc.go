// Package learners provides the built-in leaf stages: feature transformers
// (scalers, one-hot encoding, column selection) and learners (k-nearest
// neighbours, nearest centroid, decision tree, majority baseline).
//
// Every constructor takes the stage name and a config struct whose
// mapstructure tags match the params accepted in pipeline definitions.
// Configs are validated when Fit is called, so a bad config surfaces as
// INVALID_CONFIGURATION from the first fit rather than from construction.
//
// Learners predict a single column named after the stage. Classification
// predictions keep the kind of the training target; regression predictions
// are numeric.
package learners
