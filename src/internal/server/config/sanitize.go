// Package config defines the controller's configuration structure.
package config

// Sanitize returns a copy of cfg safe to log. No field currently needs
// masking.
func Sanitize(cfg *ControllerConfig) *ControllerConfig {
	sanitized := *cfg
	return &sanitized
}
