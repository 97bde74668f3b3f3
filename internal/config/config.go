package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Log struct {
		Level string
	}
	Storage struct {
		Region          string
		AccessKeyID     string
		SecretAccessKey string
		AccountID       string
		Endpoint        string
		PublicBucket    string
		PrivateBucket   string
		PublicBaseURL   string
	}
	Upload struct {
		MaxFileSize       int64
		Concurrency       int
		RollbackOnFailure bool
	}
	Link struct {
		MinExpiry     int64
		MaxExpiry     int64
		MaxRecipients int
	}
	Email struct {
		APIKey  string
		BaseURL string
		From    string
	}
	Auth struct {
		APIKey        string
		SessionSecret string
		SessionTTL    time.Duration
		AdminUsername string
		AdminPassword string
		SecureCookie  bool
	}
}

// envBindings keeps the variable names of the existing deployment working.
var envBindings = map[string]string{
	"storage.region":          "R2_REGION",
	"storage.accesskeyid":     "R2_ACCESS_KEY_ID",
	"storage.secretaccesskey": "R2_SECRET_ACCESS_KEY",
	"storage.accountid":       "R2_ACCOUNT_ID",
	"storage.endpoint":        "R2_ENDPOINT",
	"storage.publicbucket":    "R2_BUCKET_NAME",
	"storage.privatebucket":   "R2_PRIVATE_BUCKET_NAME",
	"storage.publicbaseurl":   "R2_PUBLIC_BASE_URL",
	"email.apikey":            "RESEND_API_KEY",
	"email.from":              "EMAIL_FROM",
	"auth.apikey":             "API_KEY",
	"auth.sessionsecret":      "NEXTAUTH_SECRET",
	"auth.adminusername":      "ADMIN_USERNAME",
	"auth.adminpassword":      "ADMIN_PASSWORD",
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	// a missing .env is fine; existing variables win
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FILEDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, "FILEDROP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.accesskeyid", "")
	v.SetDefault("storage.secretaccesskey", "")
	v.SetDefault("storage.accountid", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.publicbucket", "")
	v.SetDefault("storage.privatebucket", "")
	v.SetDefault("storage.publicbaseurl", "")
	v.SetDefault("upload.maxfilesize", 100<<20)
	v.SetDefault("upload.concurrency", 4)
	v.SetDefault("upload.rollbackonfailure", true)
	v.SetDefault("link.minexpiry", 30)
	v.SetDefault("link.maxexpiry", 7*24*60*60)
	v.SetDefault("link.maxrecipients", 10)
	v.SetDefault("email.apikey", "")
	v.SetDefault("email.baseurl", "https://api.resend.com")
	v.SetDefault("email.from", "")
	v.SetDefault("auth.apikey", "")
	v.SetDefault("auth.sessionsecret", "")
	v.SetDefault("auth.sessionttl", 24*time.Hour)
	v.SetDefault("auth.adminusername", "")
	v.SetDefault("auth.adminpassword", "")
	v.SetDefault("auth.securecookie", true)
}

// StorageEndpoint resolves the S3 endpoint, deriving the R2 one from the account id.
func (c Config) StorageEndpoint() string {
	if ep := strings.TrimSpace(c.Storage.Endpoint); ep != "" {
		return ep
	}
	if id := strings.TrimSpace(c.Storage.AccountID); id != "" {
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", id)
	}
	return ""
}

// Validate reports every required value that is missing.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Storage.PublicBucket) == "" {
		errs = append(errs, errors.New("public bucket is required"))
	}
	if strings.TrimSpace(c.Storage.PrivateBucket) == "" {
		errs = append(errs, errors.New("private bucket is required"))
	}
	if strings.TrimSpace(c.Storage.PublicBaseURL) == "" {
		errs = append(errs, errors.New("public base URL is required"))
	}
	if strings.TrimSpace(c.Storage.AccessKeyID) == "" || strings.TrimSpace(c.Storage.SecretAccessKey) == "" {
		errs = append(errs, errors.New("storage credentials are required"))
	}
	if c.StorageEndpoint() == "" {
		errs = append(errs, errors.New("storage endpoint or account id is required"))
	}
	if strings.TrimSpace(c.Auth.SessionSecret) == "" {
		errs = append(errs, errors.New("session secret is required"))
	}
	if strings.TrimSpace(c.Auth.AdminUsername) == "" || c.Auth.AdminPassword == "" {
		errs = append(errs, errors.New("admin username and password are required"))
	}
	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, errors.New("upload max file size must be positive"))
	}
	if c.Link.MinExpiry <= 0 || c.Link.MaxExpiry < c.Link.MinExpiry {
		errs = append(errs, fmt.Errorf("invalid link expiry bounds %d..%d", c.Link.MinExpiry, c.Link.MaxExpiry))
	}
	return errors.Join(errs...)
}
