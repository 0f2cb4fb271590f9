// Package logger provides structured logging for mlkit using zerolog.
//
// It supports JSON and console output, level configuration, component and
// stage scoped loggers and trace correlation from the active span.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	logger.SetGlobalLogger(logger.New(&cfg.Logging, "mlkit"))
//	logger.RegisterDefaults("cli")
//
//	log := logger.Get("cli").WithStage("vote")
//	log.Debug("fold scored", logger.Fields(logger.FieldFold, 2, logger.FieldScore, 96.7))
//
// Library code never logs unless a logger is passed in; OrNop turns a nil
// logger into a silent one.
package logger
