// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/reportriser")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	c, err := load("")
	require.NoError(t, err)

	assert.Equal(t, "ReportRiser", c.App.Name)
	assert.Equal(t, time.Hour, c.Auth.MagicLinkTTL)
	assert.Equal(t, "mobile", c.PageSpeed.Strategy)
	assert.Equal(t, 30*time.Second, c.PageSpeed.Timeout)
	assert.Equal(t, StorageFilesystem, c.Storage.Type)
	assert.Equal(t, 10, c.Report.HistoryLimit)
	assert.InDelta(t, 100.0, c.Report.DefaultOrderValue, 0.0001)
	assert.Equal(t, 600, c.RateLimit.Tiers["premium"])
	assert.Equal(t, "starter", c.Billing.DefaultTier)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_TYPE", "s3")
	t.Setenv("S3_BUCKET", "reports-bucket")
	t.Setenv("S3_PATH_STYLE", "true")
	t.Setenv("STRIPE_PRICE_PREMIUM", "price_premium_123")
	t.Setenv("PAGESPEED_API_KEY", "psi-key")

	c, err := load("")
	require.NoError(t, err)

	assert.Equal(t, StorageS3, c.Storage.Type)
	assert.Equal(t, "reports-bucket", c.Storage.Bucket)
	assert.True(t, c.Storage.PathStyle)
	assert.Equal(t, "price_premium_123", c.Billing.TierPrices["premium"])
	assert.Equal(t, "psi-key", c.PageSpeed.APIKey)
}

func TestLoad_YAMLFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := []byte(`
report:
  default_order_value: 250
  product_name: Acme SEO
vitals_cache:
  size: 64
`)
	require.NoError(t, os.WriteFile(path, yamlBody, 0o600))

	c, err := load(path)
	require.NoError(t, err)

	assert.InDelta(t, 250.0, c.Report.DefaultOrderValue, 0.0001)
	assert.Equal(t, "Acme SEO", c.Report.ProductName)
	assert.Equal(t, 64, c.Vitals.Size)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	_, err := load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_TYPE", "s3")

	_, err := load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")
}

func TestValidate_UnknownStorage(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_TYPE", "ftp")

	_, err := load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage type")
}

func TestValidate_ProductionNeedsWebhookSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")
}

func TestServerConfig_Address(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 9090}
	assert.Equal(t, "127.0.0.1:9090", s.Address())
}
