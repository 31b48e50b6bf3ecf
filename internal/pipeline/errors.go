package pipeline

import "fmt"

// ConfigurationError means a category was explicitly requested but the
// configuration it needs is missing. Categories already completed in the
// same run stay committed.
type ConfigurationError struct {
	Category string
	Missing  []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("pipeline: %s requested but %v not configured", e.Category, e.Missing)
}
