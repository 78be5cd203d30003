package config

import (
	"encoding/json"
	"os"
	"time"
)

// Create new config instance
func NewConfig() *Config {
	return &Config{}
}

// Load configuration file in json format
func (c *Config) Read(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}
	c.applyDefaults()
	return nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.PageSize <= 0 {
		c.Pipeline.PageSize = 25
	}
	if c.Pipeline.ImageWorkers <= 0 {
		c.Pipeline.ImageWorkers = 4
	}
	if c.Pipeline.FetchTimeout <= 0 {
		c.Pipeline.FetchTimeout = 30 * time.Second
	}
	if c.Pipeline.UploadTimeout <= 0 {
		c.Pipeline.UploadTimeout = 60 * time.Second
	}
	if c.Pipeline.JPEGQuality <= 0 {
		c.Pipeline.JPEGQuality = 50
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = 2
	}
	if c.Batch.MaxAttempts <= 0 {
		c.Batch.MaxAttempts = 3
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = 10 * time.Second
	}
}
