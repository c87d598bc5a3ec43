package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIURL is the backend the client talks to when none is configured.
const DefaultAPIURL = "http://localhost:5000"

// ClientConfig holds the assistant client settings.
type ClientConfig struct {
	APIURL         string
	WSURL          string
	PollInterval   time.Duration
	PollFailures   int
	RequestTimeout time.Duration
	ReconnectMode  string
	ReconnectDelay time.Duration
	ReconnectMax   time.Duration
	MaxAttempts    int
}

// Validate checks the client settings.
func (c *ClientConfig) Validate() error {
	if err := checkURL(c.APIURL, "http", "https"); err != nil {
		return fmt.Errorf("api_url: %w", err)
	}
	if c.WSURL != "" {
		if err := checkURL(c.WSURL, "ws", "wss"); err != nil {
			return fmt.Errorf("ws_url: %w", err)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0")
	}
	if c.PollFailures < 1 {
		return fmt.Errorf("poll_max_failures must be >= 1")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("reconnect.max_attempts must be >= 0")
	}
	return nil
}

// StreamURL returns the push-channel URL: the explicit override, or the API
// URL with its scheme switched to ws/wss and "/ws" appended.
func (c *ClientConfig) StreamURL() (string, error) {
	if c.WSURL != "" {
		return c.WSURL, nil
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%q must use one of %s", raw, strings.Join(schemes, ", "))
}
