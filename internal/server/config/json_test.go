package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJSON_Overlay(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_grpc":              "www.example:9000",
		"storage":                         "memory",
		"secret_key":                      "my_secret_key",
		"access_token_validity_duration":  "5m",
		"refresh_token_validity_duration": "48h",
		"invitation_validity_duration":    3600000000000,
		"s3_bucket":                       "bucket",
		"log_level":                       "debug",
	})

	var c Config
	c.LoadDefaults()
	require.NoError(t, parseJSON(&c, []string{"-c", path}))

	assert.Equal(t, "www.example:9000", c.EndpointAddrGRPC)
	assert.Equal(t, StorageMemory, c.Storage)
	assert.Equal(t, "my_secret_key", c.SecretKey)
	assert.Equal(t, 5*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 48*time.Hour, c.RefreshTokenValidityDuration)
	assert.Equal(t, time.Hour, c.InvitationValidityDuration)
	assert.Equal(t, "bucket", c.S3Bucket)
	assert.Equal(t, "debug", c.LogLevel)

	// absent keys keep defaults
	assert.Equal(t, ":9090", c.MetricsAddr)
	assert.Equal(t, "digestKey", c.DigestKey)
	assert.Equal(t, 15*time.Minute, c.ManuscriptURLValidityDuration)
}

func Test_parseJSON_NoFlag(t *testing.T) {
	var c Config
	c.LoadDefaults()
	before := c

	require.NoError(t, parseJSON(&c, []string{"-a", ":1"}))
	assert.Equal(t, before, c)
}

func Test_parseJSON_Errors(t *testing.T) {
	var c Config

	err := parseJSON(&c, []string{"-config", filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	err = parseJSON(&c, []string{"-c", bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")

	path := writeTempJSON(t, map[string]any{"request_timeout": "soon"})
	err = parseJSON(&c, []string{"-c", path})
	assert.Error(t, err)
}
