package config

import "errors"

// ConfigurationError reports an invalid configuration value. It is only raised while
// the configuration is loaded, never by a running pipeline.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration value for " + e.Field + ": " + e.Reason
}

func NewConfigurationError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
