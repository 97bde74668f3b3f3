package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, int64(100<<20), cfg.Upload.MaxFileSize)
	assert.Equal(t, 4, cfg.Upload.Concurrency)
	assert.True(t, cfg.Upload.RollbackOnFailure)
	assert.Equal(t, int64(30), cfg.Link.MinExpiry)
	assert.Equal(t, int64(604800), cfg.Link.MaxExpiry)
	assert.Equal(t, 10, cfg.Link.MaxRecipients)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, "https://api.resend.com", cfg.Email.BaseURL)
}

func TestLoad_DeploymentVariables(t *testing.T) {
	t.Setenv("R2_REGION", "weur")
	t.Setenv("R2_ACCESS_KEY_ID", "id")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_ACCOUNT_ID", "acct")
	t.Setenv("R2_BUCKET_NAME", "pub")
	t.Setenv("R2_PRIVATE_BUCKET_NAME", "priv")
	t.Setenv("R2_PUBLIC_BASE_URL", "https://files.example.com")
	t.Setenv("API_KEY", "k")
	t.Setenv("NEXTAUTH_SECRET", "s")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "pw")
	t.Setenv("FILEDROP_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("FILEDROP_LINK_MAXEXPIRY", "3600")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "weur", cfg.Storage.Region)
	assert.Equal(t, "pub", cfg.Storage.PublicBucket)
	assert.Equal(t, "priv", cfg.Storage.PrivateBucket)
	assert.Equal(t, "https://files.example.com", cfg.Storage.PublicBaseURL)
	assert.Equal(t, "k", cfg.Auth.APIKey)
	assert.Equal(t, "admin", cfg.Auth.AdminUsername)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, int64(3600), cfg.Link.MaxExpiry)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com", cfg.StorageEndpoint())
	assert.NoError(t, cfg.Validate())
}

func TestStorageEndpoint_ExplicitWins(t *testing.T) {
	var cfg Config
	cfg.Storage.AccountID = "acct"
	cfg.Storage.Endpoint = "http://localhost:9000"
	assert.Equal(t, "http://localhost:9000", cfg.StorageEndpoint())
}

func TestValidate_ReportsMissing(t *testing.T) {
	var cfg Config
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"public bucket is required",
		"private bucket is required",
		"public base URL is required",
		"storage credentials are required",
		"session secret is required",
		"admin username and password are required",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_RequiresPublicBaseURL(t *testing.T) {
	var cfg Config
	cfg.Storage.PublicBucket = "pub"
	cfg.Storage.PrivateBucket = "priv"
	cfg.Storage.AccessKeyID = "id"
	cfg.Storage.SecretAccessKey = "secret"
	cfg.Storage.AccountID = "acct"
	cfg.Auth.SessionSecret = "s"
	cfg.Auth.AdminUsername = "admin"
	cfg.Auth.AdminPassword = "pw"
	cfg.Upload.MaxFileSize = 1
	cfg.Link.MinExpiry = 30
	cfg.Link.MaxExpiry = 60

	require.EqualError(t, cfg.Validate(), "public base URL is required")

	cfg.Storage.PublicBaseURL = "https://files.example.com"
	assert.NoError(t, cfg.Validate())
}
