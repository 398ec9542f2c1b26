package openai

import "time"

// Config tunes the OpenAI-compatible chat endpoint.
type Config struct {
	APIKey      string
	BaseURL     string // empty for api.openai.com
	Model       string
	Temperature float32
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	return c
}
