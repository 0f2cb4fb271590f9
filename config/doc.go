// Package config loads the mlkit command configuration.
//
// LoadConfig uses Viper to read a YAML file, then a .env file (godotenv),
// then MLKIT_* environment variables, which win. Underscores in variable
// names may separate sections or words, so MLKIT_EVALUATION_MAX_PARALLEL
// sets evaluation.max_parallel.
//
// # Usage
//
//	cfg, err := config.Load("mlkit", config.WithConfigFile("mlkit.yml"))
//	if err != nil {
//	    return err
//	}
//	root, err := pipeline.Parse(cfg.Pipeline.Expression, nil, pipeline.WithSelect(cfg.SelectConfig()))
package config
