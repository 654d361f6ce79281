package s3

import "fmt"

// Config holds the connection settings for an S3 backend.
type Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// NewDefaultConfig returns a config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Region: "us-east-1",
	}
}

// ConfigFromOptions builds a Config from flat backend options as passed
// through a URL-derived option map.
func ConfigFromOptions(options map[string]string) *Config {
	cfg := NewDefaultConfig()
	if v := options["bucket"]; v != "" {
		cfg.Bucket = v
	}
	if v := options["region"]; v != "" {
		cfg.Region = v
	}
	if v := options["endpoint"]; v != "" {
		cfg.Endpoint = v
	}
	if v := options["access_key_id"]; v != "" {
		cfg.AccessKeyID = v
	}
	if v := options["secret_access_key"]; v != "" {
		cfg.SecretAccessKey = v
	}
	if v := options["session_token"]; v != "" {
		cfg.SessionToken = v
	}
	if options["force_path_style"] == "true" {
		cfg.ForcePathStyle = true
	}
	return cfg
}

// Validate checks the configuration for usability.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("bucket name cannot be empty")
	}
	if c.Region == "" {
		return fmt.Errorf("region cannot be empty")
	}
	return nil
}
