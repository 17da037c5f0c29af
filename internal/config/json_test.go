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

func Test_parseJson_LoadsFromFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"database_dsn":                   "postgres://u:p@db:5432/vault",
		"secret_key":                     "my_secret_key",
		"access_token_validity_duration": "10m",
		"session_token_ttl":              "168h",
		"kdf_max_concurrent":             2,
		"s3_root_user":                   "user",
		"s3_root_password":               "password",
		"s3_bucket":                      "bucket",
		"s3_region":                      "region",
		"s3_base_endpoint":               "base_endpoint",
	})

	os.Args = []string{"testbin", "-config", path}

	cfg := &Config{}
	parseJson(cfg)

	assert.Equal(t, "postgres://u:p@db:5432/vault", cfg.DatabaseDSN)
	assert.Equal(t, "my_secret_key", cfg.SecretKey)
	assert.Equal(t, 10*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 168*time.Hour, cfg.SessionTokenTTL)
	assert.Equal(t, int64(2), cfg.KDFMaxConcurrent)
	assert.Equal(t, "user", cfg.S3RootUser)
	assert.Equal(t, "bucket", cfg.S3Bucket)
}

func Test_parseJson_NoFlagNoChanges(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := &Config{DatabaseDSN: "keep-me", SecretKey: "keep-me-too"}
	parseJson(cfg)

	assert.Equal(t, "keep-me", cfg.DatabaseDSN)
	assert.Equal(t, "keep-me-too", cfg.SecretKey)
}
