package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// A PUT may never store more than was read from the wire
	if cfg.Server.MaxMessageSize > cfg.Server.MaxBodySize {
		return fmt.Errorf("server: max_message_size (%d) exceeds max_body_size (%d)",
			cfg.Server.MaxMessageSize, cfg.Server.MaxBodySize)
	}

	// The metrics listener must not collide with the file listener
	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port && cfg.Metrics.Host == cfg.Server.Host {
		return fmt.Errorf("metrics: port %d already used by the file server", cfg.Metrics.Port)
	}

	return nil
}

// Warnings returns non-fatal configuration concerns for the operator.
//
// Parameters:
//   - cfg: Validated configuration
//   - euid: Effective user ID of the process (0 for root)
//
// Returns one human-readable message per concern, in a stable order.
func Warnings(cfg *Config, euid int) []string {
	var warnings []string

	if cfg.Server.Port < 1024 && euid != 0 {
		warnings = append(warnings, "using port number below 1024 as non-superuser")
	}

	if cfg.Server.Threads >= ThreadWarnThreshold && !cfg.Server.NoWarnThreads {
		warnings = append(warnings,
			"using a very large number of threads",
			"(--no-warn-threads to suppress this warning if you know what you're doing)")
	}

	if !cfg.Server.StrictPaths {
		warnings = append(warnings, "strict_paths is disabled: request targets may reach outside the files directory")
	}

	return warnings
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
