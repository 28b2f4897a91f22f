package server

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"asset-catalog/internal/storage"
)

// Settings is the process configuration, read from the environment.
type Settings struct {
	Port    int    `env:"PORT" envDefault:"5000"`
	AppEnv  string `env:"APP_ENV"`
	NodeEnv string `env:"NODE_ENV"`
	Version string `env:"APP_VERSION" envDefault:"dev"`

	// DatabaseURL wins over the discrete DB_* settings when set.
	DatabaseURL string `env:"DATABASE_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      int    `env:"DB_PORT" envDefault:"5432"`
	DBName      string `env:"DB_NAME" envDefault:"voith_db"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`

	JWTSecret    string        `env:"JWT_SECRET"`
	JWTExpiresIn time.Duration `env:"JWT_EXPIRES_IN" envDefault:"24h"`

	AdminEmail    string `env:"ADMIN_EMAIL" envDefault:"admin@voith.com"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"local"`
	UploadDir      string `env:"UPLOAD_DIR" envDefault:"uploads"`
	PublicBaseURL  string `env:"PUBLIC_BASE_URL"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`

	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3Prefix    string `env:"S3_PREFIX" envDefault:"voith"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`

	CloudflareAccountID string `env:"CLOUDFLARE_ACCOUNT_ID"`
	CloudflareAPIToken  string `env:"CLOUDFLARE_API_TOKEN"`
	CloudflareVariant   string `env:"CLOUDFLARE_VARIANT"`
	CloudflareAPIURL    string `env:"CLOUDFLARE_API_URL"`

	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadSettings reads Settings from the process environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// ParseSettings reads Settings from the given variables only.
func ParseSettings(vars map[string]string) (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: vars}); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// Environment returns the deployment environment name.
func (s Settings) Environment() string {
	switch {
	case s.AppEnv != "":
		return s.AppEnv
	case s.NodeEnv != "":
		return s.NodeEnv
	default:
		return "development"
	}
}

func (s Settings) Production() bool {
	return s.Environment() == "production"
}

func (s Settings) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// DSN returns the database connection string.
func (s Settings) DSN() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.DBUser, s.DBPassword),
		Host:     net.JoinHostPort(s.DBHost, strconv.Itoa(s.DBPort)),
		Path:     "/" + s.DBName,
		RawQuery: url.Values{"sslmode": []string{s.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// StorageConfig returns the settings of the selected asset backend.
func (s Settings) StorageConfig() storage.Config {
	return storage.Config{
		Backend:       s.StorageBackend,
		LocalDir:      s.UploadDir,
		PublicBaseURL: s.PublicBaseURL,
		S3: storage.S3Config{
			Endpoint:  s.S3Endpoint,
			AccessKey: s.S3AccessKey,
			SecretKey: s.S3SecretKey,
			Bucket:    s.S3Bucket,
			Prefix:    s.S3Prefix,
			PublicURL: s.S3PublicURL,
		},
		Cloudflare: storage.CloudflareConfig{
			AccountID: s.CloudflareAccountID,
			APIToken:  s.CloudflareAPIToken,
			Variant:   s.CloudflareVariant,
			Folder:    s.S3Prefix,
			BaseURL:   s.CloudflareAPIURL,
		},
	}
}

// Validate reports every configuration problem at once.
func (s Settings) Validate() error {
	v := NewConfigValidator()

	v.ValidatePort("PORT", s.Port)
	v.ValidateEnum("APP_ENV", s.Environment(), []string{"development", "production", "staging", "test"})

	if s.DatabaseURL != "" {
		if !strings.HasPrefix(s.DatabaseURL, "postgres://") && !strings.HasPrefix(s.DatabaseURL, "postgresql://") {
			v.AddError("DATABASE_URL", "must be a valid PostgreSQL connection string")
		}
	} else {
		v.ValidateRequired("DB_HOST", s.DBHost)
		v.ValidateRequired("DB_NAME", s.DBName)
		v.ValidatePort("DB_PORT", s.DBPort)
	}

	v.ValidateRequired("JWT_SECRET", s.JWTSecret)
	if s.Production() {
		v.ValidateMinLength("JWT_SECRET", s.JWTSecret, 32)
	}
	if s.JWTExpiresIn <= 0 {
		v.AddError("JWT_EXPIRES_IN", "must be a positive duration")
	}

	if s.AdminPassword != "" {
		v.ValidateRequired("ADMIN_EMAIL", s.AdminEmail)
		v.ValidateEmailAddress("ADMIN_EMAIL", s.AdminEmail)
	}

	v.ValidatePositive("MAX_UPLOAD_BYTES", s.MaxUploadBytes)
	v.ValidateURL("PUBLIC_BASE_URL", s.PublicBaseURL)

	v.ValidateEnum("STORAGE_BACKEND", s.StorageBackend, storage.Backends)
	switch s.StorageBackend {
	case "local":
		v.ValidateRequired("UPLOAD_DIR", s.UploadDir)
	case "s3":
		v.ValidateRequired("S3_ENDPOINT", s.S3Endpoint)
		v.ValidateRequired("S3_ACCESS_KEY", s.S3AccessKey)
		v.ValidateRequired("S3_SECRET_KEY", s.S3SecretKey)
		v.ValidateRequired("S3_BUCKET", s.S3Bucket)
		v.ValidateURL("S3_PUBLIC_URL", s.S3PublicURL)
	case "cloudflare":
		v.ValidateRequired("CLOUDFLARE_ACCOUNT_ID", s.CloudflareAccountID)
		v.ValidateRequired("CLOUDFLARE_API_TOKEN", s.CloudflareAPIToken)
		v.ValidateURL("CLOUDFLARE_API_URL", s.CloudflareAPIURL)
	}

	v.ValidateEnum("LOG_LEVEL", strings.ToLower(s.LogLevel), []string{"debug", "info", "warn", "error"})
	v.ValidateEnum("LOG_FORMAT", strings.ToLower(s.LogFormat), []string{"json", "console"})

	return v.Err()
}
