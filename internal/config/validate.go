package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	log "github.com/sirupsen/logrus"

	"annotate/internal/models"
)

// Validate checks every setting the commands depend on.
func (c *Config) Validate() error {
	// Backend
	if c.Backend.URL == "" {
		return errors.New("backend.url is required")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.url must be an absolute http(s) URL, got %q", c.Backend.URL)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend.timeout must be positive")
	}

	// Review
	if c.Review.SaveDelay <= 0 {
		return errors.New("review.save_delay must be positive")
	}
	if _, err := models.ParseSortKey(c.Review.DefaultSort); err != nil {
		return fmt.Errorf("review.default_sort: %w", err)
	}
	if c.Review.SuggestionLimit < 0 {
		return errors.New("review.suggestion_limit must be zero (unlimited) or positive")
	}

	// Server
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if p, err := strconv.Atoi(c.Server.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("server.port must be a TCP port, got %q", c.Server.Port)
	}

	// Logging
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}
