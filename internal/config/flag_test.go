package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_parseFlags_OverridesFields(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin",
		"-d", "postgres://u:p@flagged:5432/vault",
		"-s", "flag-secret",
		"-t", "5",
		"-r", "24",
		"-k", "8",
		"-b", "flag-bucket",
	}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, "postgres://u:p@flagged:5432/vault", cfg.DatabaseDSN)
	assert.Equal(t, "flag-secret", cfg.SecretKey)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 24*time.Hour, cfg.SessionTokenTTL)
	assert.Equal(t, int64(8), cfg.KDFMaxConcurrent)
	assert.Equal(t, "flag-bucket", cfg.S3Bucket)
}

func Test_parseFlags_KeepsDefaultsWithoutFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"testbin"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTokenTTL)
}
