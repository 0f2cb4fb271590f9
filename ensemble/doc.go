// Package ensemble provides meta-learners that combine member stages and
// are stages themselves, so they nest inside chains, unions and other
// ensembles.
//
//   - Vote fits every member on the full data and combines their
//     predictions row by row: plurality for classification (ties go to the
//     first-declared member among those tied), mean for regression.
//   - Stack trains a meta-learner on out-of-fold member predictions, then
//     refits the members on the full data.
//   - Best cross-validates every member and keeps only the highest scorer,
//     refit on the full data.
//
// Members are never shared: Clone copies the whole tree, and cross-validation
// always works on clones.
package ensemble
