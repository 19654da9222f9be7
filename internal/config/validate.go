package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// DATABASE_URL is required
	if cfg.DatabaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_URL",
			Message: "required",
		})
	}

	errs = append(errs, validatePositiveDuration("TICK_INTERVAL", cfg.TickIntervalStr)...)
	errs = append(errs, validatePositiveDuration("QUEUE_CHECK_INTERVAL", cfg.QueueCheckIntervalStr)...)
	errs = append(errs, validatePositiveDuration("TRENDING_CHECK_INTERVAL", cfg.TrendingCheckIntervalStr)...)
	errs = append(errs, validatePositiveDuration("COLLAB_TIMEOUT", cfg.CollabTimeoutStr)...)

	if cfg.ReconcileEnabled {
		errs = append(errs, validatePositiveDuration("RECONCILE_INTERVAL", cfg.ReconcileIntervalStr)...)
		errs = append(errs, validatePositiveDuration("RECONCILE_THRESHOLD", cfg.ReconcileThresholdStr)...)

		// A threshold at or below the collaborator timeout would reclaim
		// guards from executions that are still legitimately running.
		if cfg.ReconcileThreshold > 0 && cfg.CollabTimeout > 0 &&
			cfg.ReconcileThreshold <= cfg.CollabTimeout {
			errs = append(errs, ValidationError{
				Field:   "RECONCILE_THRESHOLD",
				Message: fmt.Sprintf("must exceed COLLAB_TIMEOUT (%s)", cfg.CollabTimeoutStr),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePositiveDuration(field, value string) ValidationErrors {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid duration: %v", err)}}
	}
	if d <= 0 {
		return ValidationErrors{{Field: field, Message: "must be positive"}}
	}
	return nil
}
