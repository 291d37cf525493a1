package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidConfig wraps every error returned by Validate.
var ErrInvalidConfig = errors.New("config validation errors")

// Validate checks the config for:
//   - Required fields
//   - A known cycle mode and non-negative delays
//   - Well-formed endpoint URLs
func Validate(cfg *Config) error {
	var errs []string
	if cfg.Version == "" {
		errs = append(errs, "version: is required")
	}

	switch cfg.Cycle.Mode {
	case ModeSync, ModeDetached:
	default:
		errs = append(errs, fmt.Sprintf("cycle.mode: must be %q or %q, got %q", ModeSync, ModeDetached, cfg.Cycle.Mode))
	}
	if cfg.Cycle.AnalyzingDelayMs < 0 {
		errs = append(errs, "cycle.analyzing_delay_ms: must not be negative")
	}
	if cfg.Cycle.ActingDelayMs < 0 {
		errs = append(errs, "cycle.acting_delay_ms: must not be negative")
	}
	if cfg.Cycle.QueueDepth < 1 {
		errs = append(errs, "cycle.queue_depth: must be at least 1")
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("llm.temperature: must be within [0, 2], got %v", cfg.LLM.Temperature))
	}

	endpoints := []struct{ field, raw string }{
		{"dataset.base_url", cfg.Dataset.BaseURL},
		{"llm.base_url", cfg.LLM.BaseURL},
		{"crm.base_url", cfg.CRM.BaseURL},
		{"notify.base_url", cfg.Notify.BaseURL},
		{"notify.dashboard_url", cfg.Notify.DashboardURL},
	}
	for _, ep := range endpoints {
		if ep.raw == "" {
			continue
		}
		u, err := url.Parse(ep.raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("%s: %q is not an http(s) URL", ep.field, ep.raw))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}
