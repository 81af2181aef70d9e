package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "lock.max_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLock()...)
	errors = append(errors, c.validateWrite()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateLock validates the LockConfig
func (c *Config) validateLock() []ValidationError {
	var errors []ValidationError

	if c.Lock.MaxAgeMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.max_age_minutes",
			Value:   c.Lock.MaxAgeMinutes,
			Message: "must be zero or positive (0 disables the age check)",
		})
	}

	if c.Lock.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "lock.max_attempts",
			Value:   c.Lock.MaxAttempts,
			Message: "must be at least 1",
		})
	}

	if c.Lock.BaseDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.base_delay_ms",
			Value:   c.Lock.BaseDelayMs,
			Message: "must be zero or positive",
		})
	}

	if c.Lock.Multiplier < 1.0 {
		errors = append(errors, ValidationError{
			Field:   "lock.multiplier",
			Value:   c.Lock.Multiplier,
			Message: "must be at least 1.0 (delays never shrink)",
		})
	}

	if c.Lock.MaxDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "lock.max_delay_ms",
			Value:   c.Lock.MaxDelayMs,
			Message: "must be zero or positive (0 means uncapped)",
		})
	}

	if c.Lock.Jitter < 0 || c.Lock.Jitter > 1 {
		errors = append(errors, ValidationError{
			Field:   "lock.jitter",
			Value:   c.Lock.Jitter,
			Message: "must be between 0 and 1",
		})
	}

	return errors
}

// validateWrite validates the WriteConfig
func (c *Config) validateWrite() []ValidationError {
	var errors []ValidationError

	if _, err := parseFileMode(c.Write.FileMode); err != nil {
		errors = append(errors, ValidationError{
			Field:   "write.file_mode",
			Value:   c.Write.FileMode,
			Message: "must be an octal mode like 0644",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// parseFileMode parses an octal mode string like "0644" or "644".
func parseFileMode(s string) (os.FileMode, error) {
	if s == "" {
		return 0, fmt.Errorf("empty file mode")
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file mode %q: %w", s, err)
	}
	if n > 0777 {
		return 0, fmt.Errorf("file mode %q has bits outside permissions", s)
	}
	return os.FileMode(n), nil
}
