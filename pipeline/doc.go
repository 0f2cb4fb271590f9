// Package pipeline composes stages into trees.
//
// Three combinators build composites from any stages, leaves or composites:
//
//   - Chain (then): each child is fit on the output of the previous one and
//     transform pipes features through every child in order.
//   - Union (with): children see the same input; their outputs are joined
//     column-wise in declaration order, collisions suffixed _1, _2, ...
//   - Select (or): alternatives are resolved by an ensemble, either keeping
//     the best cross-validated one or combining all by vote or stacking.
//
// The same trees can be declared as text:
//
//	numeric |> scale |> (knn * tree * centroid)
//	(onehot + scale) then vote(knn, tree, centroid)
//
// "|>" (then) binds loosest, "+" (with) next, "*" (or) tightest; parentheses
// group. vote(...), stack(...) and best(...) build ensembles explicitly.
// Identifiers resolve through a Registry of factories, so every mention is a
// fresh stage.
//
// # Definitions
//
// A Definition is a YAML document naming an expression together with its
// selection settings, parameterised components and reusable aliases:
//
//	name: iris
//	expression: "prep |> (knn5 * tree)"
//	select: {mode: best, metric: accuracy, folds: 5, shuffle: true, seed: 7}
//	components:
//	  knn5: {type: knn, params: {k: 5}}
//	aliases:
//	  prep: "numeric |> scale"
//
// Use LoadDefinition or ParseDefinition followed by Build.
package pipeline
