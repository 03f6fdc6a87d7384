package config

import (
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
)

// configValidate is the validator instance for configuration structs.
// Initialized in init() with custom validators.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("csssize", func(fl validator.FieldLevel) bool {
		return pkgerrors.ValidateCSSSize(fl.Field().String()) == nil
	})
	_ = configValidate.RegisterValidation("scripturl", func(fl validator.FieldLevel) bool {
		return pkgerrors.ValidateScriptURL(fl.Field().String()) == nil
	})
}

// Validate checks every field against its constraints.
// An unsupported output format is reported with ErrCodeInvalidFormat, all
// other violations with ErrCodeInvalidConfig.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.ErrCodeInvalidConfig, err, "invalid configuration")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.StructField() == "OutputFormat" {
			return pkgerrors.New(pkgerrors.ErrCodeInvalidFormat,
				"output_format must be raw, png or svg, got %q", fe.Value())
		}
		msgs = append(msgs, describe(fe))
	}
	return pkgerrors.New(pkgerrors.ErrCodeInvalidConfig, "invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Namespace())
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "min":
		return field + " must not be empty"
	case "oneof":
		return field + " must be one of " + fe.Param()
	default:
		return field + " failed " + fe.Tag()
	}
}
