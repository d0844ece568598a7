package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

var agentNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAgentName validates an agent name as used in builtin_agents and default_agent
func (v *Validator) ValidateAgentName(name string) error {
	if name == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	if !agentNamePattern.MatchString(name) {
		return fmt.Errorf("invalid agent name %q (letters, digits, - and _ only)", name)
	}
	return nil
}

// ValidateAddress validates a host:port listen or dial address
func (v *Validator) ValidateAddress(field, addr string) error {
	if addr == "" {
		return nil // disabled
	}
	if _, port, err := net.SplitHostPort(addr); err != nil || port == "" {
		return fmt.Errorf("invalid %s %q (expected host:port)", field, addr)
	}
	return nil
}

// ValidateRedisDB validates a redis logical database index
func (v *Validator) ValidateRedisDB(db int) error {
	if db < 0 || db > 15 {
		return fmt.Errorf("remote.redis_db must be between 0 and 15, got %d", db)
	}
	return nil
}

// ValidateDuration validates a non-negative duration
func (v *Validator) ValidateDuration(field string, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%s must be >= 0, got %s", field, d)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}

	for i, name := range cfg.BuiltinAgents {
		if err := v.ValidateAgentName(name); err != nil {
			errors = append(errors, fmt.Errorf("builtin agent %d: %w", i, err))
		}
	}
	if cfg.DefaultAgent != "" {
		if err := v.ValidateAgentName(cfg.DefaultAgent); err != nil {
			errors = append(errors, fmt.Errorf("default_agent: %w", err))
		}
	}

	// Validate remote channel
	if err := v.ValidateAddress("remote.redis_addr", cfg.Remote.RedisAddr); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateRedisDB(cfg.Remote.RedisDB); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateDuration("remote.ready_timeout", cfg.Remote.ReadyTimeout); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateDuration("session.transcript_max_age", cfg.Session.TranscriptMaxAge); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateAddress("metrics.addr", cfg.Metrics.Addr); err != nil {
		errors = append(errors, err)
	}

	// Validate logging
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
