package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Empty(t, cfg.Bucket)
	assert.False(t, cfg.ForcePathStyle)
}

func TestConfigFromOptions(t *testing.T) {
	cfg := ConfigFromOptions(map[string]string{
		"bucket":           "archive",
		"region":           "eu-west-1",
		"endpoint":         "http://localhost:9000",
		"access_key_id":    "AKIATEST",
		"force_path_style": "true",
	})

	assert.Equal(t, "archive", cfg.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "http://localhost:9000", cfg.Endpoint)
	assert.Equal(t, "AKIATEST", cfg.AccessKeyID)
	assert.True(t, cfg.ForcePathStyle)

	require.NoError(t, cfg.Validate())
}

func TestConfigFromOptions_Defaults(t *testing.T) {
	cfg := ConfigFromOptions(nil)
	assert.Equal(t, "us-east-1", cfg.Region)
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name cannot be empty")

	cfg.Bucket = "archive"
	cfg.Region = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region cannot be empty")

	cfg.Region = "us-west-2"
	require.NoError(t, cfg.Validate())
}

func TestKeyMapping(t *testing.T) {
	assert.Equal(t, "data/x.bin", key("data/x.bin"))
	assert.Equal(t, "data/x.bin", key("/data/x.bin"))
	assert.Equal(t, "", key("/"))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "x.bin", baseName("data/sub/x.bin"))
	assert.Equal(t, "x.bin", baseName("x.bin"))
}
