// Package taxonvault provides a Go client for the TaxonVault backup API.
package taxonvault

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ClientConfig configures a TaxonVault API client.
type ClientConfig struct {
	// BaseURL is the server address, e.g. "http://vault.internal:8080".
	BaseURL string

	// Timeout applies to every request. Defaults to 5 minutes, which
	// leaves room for large restores and exports.
	Timeout time.Duration
}

// Client is the TaxonVault API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new TaxonVault client with the given configuration.
//
// Example:
//
//	client, err := taxonvault.NewClient(taxonvault.ClientConfig{
//	    BaseURL: "http://localhost:8080",
//	})
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &ValidationError{Field: "BaseURL", Message: "is required"}
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &ValidationError{Field: "BaseURL", Message: "must be a valid URL"}
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, &ValidationError{Field: "BaseURL", Message: "must use http or https protocol"}
	}
	if parsedURL.Host == "" {
		return nil, &ValidationError{Field: "BaseURL", Message: "must include a host"}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) String() string {
	return fmt.Sprintf("TaxonVaultClient(baseURL=%q)", c.baseURL)
}
