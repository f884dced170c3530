package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"veracity/internal/classifier"
	"veracity/internal/deception"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	switch cfg.Server.Mode {
	case "release", "debug":
	default:
		return fmt.Errorf("server.mode must be release or debug, got %q", cfg.Server.Mode)
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}

	if cfg.Extraction.MaxChars <= 0 {
		return errors.New("extraction.max_chars must be positive")
	}

	if err := validateClassifier(cfg.Classifier); err != nil {
		return err
	}

	if !validLocale(cfg.Locale) {
		return fmt.Errorf("locale %q is not supported", cfg.Locale)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}

	return nil
}

func validateClassifier(c ClassifierConfig) error {
	switch c.Provider {
	case "", classifier.ProviderHTTP, classifier.ProviderOpenAI:
	default:
		return fmt.Errorf("classifier.provider must be empty, %q or %q, got %q",
			classifier.ProviderHTTP, classifier.ProviderOpenAI, c.Provider)
	}

	if c.Provider == classifier.ProviderHTTP {
		if strings.TrimSpace(c.Endpoint) == "" {
			return errors.New("classifier.endpoint must be set for the http provider")
		}
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("classifier.endpoint %q is not a valid URL", c.Endpoint)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("classifier.endpoint must use http or https")
		}
	}

	if c.TimeoutSeconds <= 0 {
		return errors.New("classifier.timeout_seconds must be positive")
	}
	if c.RateLimitRPS < 0 {
		return errors.New("classifier.rate_limit_rps must not be negative")
	}
	if c.RateBurst < 0 {
		return errors.New("classifier.rate_burst must not be negative")
	}

	return nil
}

func validLocale(loc string) bool {
	for _, l := range deception.SupportedLocales() {
		if string(l) == loc {
			return true
		}
	}
	return false
}
