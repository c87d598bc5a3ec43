package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validClient() ClientConfig {
	return ClientConfig{
		APIURL:         DefaultAPIURL,
		PollInterval:   time.Second,
		PollFailures:   3,
		RequestTimeout: 30 * time.Second,
		ReconnectMode:  "fixed",
		ReconnectDelay: 3 * time.Second,
	}
}

func TestStreamURLDerivedFromAPI(t *testing.T) {
	tests := map[string]string{
		"http://localhost:5000":            "ws://localhost:5000/ws",
		"https://shop.example.com/":        "wss://shop.example.com/ws",
		"https://shop.example.com/api?x=1": "wss://shop.example.com/api/ws",
	}
	for api, want := range tests {
		t.Run(api, func(t *testing.T) {
			c := validClient()
			c.APIURL = api
			got, err := c.StreamURL()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestStreamURLOverride(t *testing.T) {
	c := validClient()
	c.WSURL = "wss://push.example.com/socket"
	got, err := c.StreamURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://push.example.com/socket", got)
}

func TestClientValidate(t *testing.T) {
	c := validClient()
	require.NoError(t, c.Validate())

	tests := map[string]func(*ClientConfig){
		"ftp api":      func(c *ClientConfig) { c.APIURL = "ftp://x" },
		"no host":      func(c *ClientConfig) { c.APIURL = "http://" },
		"http ws":      func(c *ClientConfig) { c.WSURL = "http://localhost:5000/ws" },
		"zero poll":    func(c *ClientConfig) { c.PollInterval = 0 },
		"zero timeout": func(c *ClientConfig) { c.RequestTimeout = 0 },
		"zero fails":   func(c *ClientConfig) { c.PollFailures = 0 },
		"neg attempts": func(c *ClientConfig) { c.MaxAttempts = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := validClient()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
