// config_validation.go - Fail-fast validation of the service settings.
//
// Collects every problem in one pass so a misconfigured deployment reports
// all of them at startup instead of failing one at a time.
package server

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ConfigValidationError is one problem with one environment variable.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ConfigValidator accumulates validation errors.
type ConfigValidator struct {
	errors []ConfigValidationError
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{Field: field, Message: message})
}

func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString lists every collected problem, one per line.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid configuration, %d error(s):\n", len(v.errors))
	for i, e := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e)
	}
	return sb.String()
}

// Err returns the collected errors as one error, or nil.
func (v *ConfigValidator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%s", v.ErrorString())
}

func (v *ConfigValidator) ValidateRequired(key, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(key, "is required")
	}
}

// ValidateURL accepts an empty value; pair it with ValidateRequired when the
// setting is mandatory.
func (v *ConfigValidator) ValidateURL(key, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	switch {
	case err != nil:
		v.AddError(key, fmt.Sprintf("not a URL: %v", err))
	case u.Scheme != "http" && u.Scheme != "https":
		v.AddError(key, "must be an http or https URL")
	case u.Host == "":
		v.AddError(key, "URL has no host")
	}
}

func (v *ConfigValidator) ValidatePort(key string, port int) {
	if port < 1 || port > 65535 {
		v.AddError(key, fmt.Sprintf("port %d out of range 1-65535", port))
	}
}

// ValidateMinLength accepts an empty value.
func (v *ConfigValidator) ValidateMinLength(key, value string, minLen int) {
	if value != "" && len(value) < minLen {
		v.AddError(key, fmt.Sprintf("must be at least %d characters (got %d)", minLen, len(value)))
	}
}

func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.AddError(key, fmt.Sprintf("%q is not one of %s", value, strings.Join(allowed, ", ")))
	}
}

func (v *ConfigValidator) ValidatePositive(key string, n int64) {
	if n <= 0 {
		v.AddError(key, "must be greater than zero")
	}
}

// ValidateEmailAddress only checks the rough local@domain shape.
func (v *ConfigValidator) ValidateEmailAddress(key, value string) {
	if value == "" {
		return
	}
	local, domain, ok := strings.Cut(value, "@")
	if !ok || local == "" || !strings.Contains(domain, ".") {
		v.AddError(key, "must be an email address")
	}
}
