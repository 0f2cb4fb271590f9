// Package validation checks configuration values before they reach a stage.
//
// # Struct Tag Validation
//
// Stage and ensemble configs carry go-playground/validator tags; field names
// in messages follow the mapstructure keys used in definitions:
//
//	type KNNConfig struct {
//	    K    int    `mapstructure:"k" validate:"gte=1"`
//	    Task string `mapstructure:"task" validate:"omitempty,oneof=classification regression"`
//	}
//	err := validation.StageConfig("knn", cfg) // INVALID_CONFIGURATION
//	err = validation.Validate(appConfig)      // INVALID_INPUT
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("expression", def.Expression)
//	v.OneOf("select.mode", def.Select.Mode, []string{"best", "vote", "stack"})
//	if err := v.ValidateStage(def.Name); err != nil { ... }
package validation
