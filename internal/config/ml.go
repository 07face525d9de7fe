package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// MLConfig describes the HTTP endpoint of the face recognition service.
// It regenerates missing descriptors and rebuilds its similarity index on request.
type MLConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	APIKeyEnv  string        `mapstructure:"api_key_env"` // Environment variable name for API key
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

// ResolveEnvVars loads the API key from APIKeyEnv when no direct value is set.
func (c *MLConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
}

// Validate checks that the ML endpoint is usable.
func (c *MLConfig) Validate() error {
	c.ResolveEnvVars()
	if c.BaseURL == "" {
		return fmt.Errorf("ml: base_url is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("ml: base_url %q must start with http:// or https://", c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("ml: timeout must not be negative")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("ml: retry_count must not be negative")
	}
	return nil
}

// Endpoint joins the base URL with an API path.
func (c *MLConfig) Endpoint(path string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}
