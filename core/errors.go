package core

import (
	"errors"
	"fmt"
)

// ConfigError is a configuration problem with an action the operator can take.
type ConfigError struct {
	Code    string
	Message string
	Action  string
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

const (
	ErrCodeMissingConfig  = "MISSING_CONFIG"
	ErrCodeInvalidValue   = "INVALID_VALUE"
	ErrCodeBackendsConfig = "BACKENDS_CONFIG"
	ErrCodeDatabase       = "DATABASE"
)

// ErrMissingConfig reports a required variable that is empty.
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your environment or .env file", varName),
	}
}

// ErrInvalidValue reports a variable whose value is out of range.
func ErrInvalidValue(varName, value, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s '%s': %s", varName, value, reason),
		Action:  fmt.Sprintf("Fix %s in your environment or .env file", varName),
	}
}

// ErrBackendsConfig reports an unreadable backends file.
func ErrBackendsConfig(path string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeBackendsConfig,
		Message: fmt.Sprintf("Cannot load backends from %s: %v", path, err),
		Action:  "Check the YAML syntax and backend types, or set BACKENDS_FILE",
	}
}

// ErrDatabase reports a database that cannot be opened or migrated.
func ErrDatabase(path string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeDatabase,
		Message: fmt.Sprintf("Cannot open history database %s: %v", path, err),
		Action:  "Check DB_PATH permissions, or delete the file to start a fresh history",
	}
}

// IsConfigError unwraps err to a *ConfigError.
func IsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// GetErrorCode returns the ConfigError code of err, or "".
func GetErrorCode(err error) string {
	if ce, ok := IsConfigError(err); ok {
		return ce.Code
	}
	return ""
}
