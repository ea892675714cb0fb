package config

import (
	"errors"
	"fmt"
	"strings"

	"filesentry/internal/models"
	"filesentry/internal/pattern"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// newValidator builds a validator with the custom tags used across the
// config and source definitions registered.
func newValidator() *validator.Validate {
	validate := validator.New()

	// cronexpr: the expression must parse as a standard five-field cron.
	_ = validate.RegisterValidation("cronexpr", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})

	// filepattern: date tokens inside braces must be recognized.
	_ = validate.RegisterValidation("filepattern", func(fl validator.FieldLevel) bool {
		return pattern.ValidateTemplate(fl.Field().String()) == nil
	})

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "trace", "debug", "info", "warn", "error", "fatal", "panic":
			return true
		default:
			return false
		}
	})

	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "console", "json":
			return true
		default:
			return false
		}
	})

	return validate
}

// ValidateConfig validates the service configuration.
func ValidateConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return models.NewValidationError("config", "config is nil")
	}
	if err := newValidator().Struct(cfg); err != nil {
		return validationError("config", err)
	}
	return nil
}

// ValidateConfiguration validates one intake source definition.
func ValidateConfiguration(cfg *models.Configuration) error {
	if err := newValidator().Struct(cfg); err != nil {
		return validationError(cfg.ID, err)
	}
	return nil
}

// validationError flattens validator's field errors into one categorized
// error naming every failing field.
func validationError(source string, err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return models.NewValidationError(source, err.Error())
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, fmt.Sprintf("field '%s' failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return models.NewValidationError(source, strings.Join(messages, "; "))
}
