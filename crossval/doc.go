// Package crossval partitions rows into k folds, scores predictions and
// estimates how well a stage generalises.
//
// CrossValidate fits a fresh Clone of the stage on each fold's training
// rows and scores it on the held-out rows, so the caller's stage is never
// fit. OutOfFold is the same loop returning the held-out predictions
// themselves, which stacking uses as meta-features.
//
//	res, err := crossval.CrossValidate(ctx, knn, x, y, crossval.Accuracy, crossval.Options{
//	    Folds:   5,
//	    Shuffle: true,
//	    Seed:    7,
//	})
//	fmt.Printf("%.1f ± %.1f\n", res.Mean, res.StdDev)
package crossval
