package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/ansuz/internal/indexstore"
	"github.com/starford/ansuz/internal/uploads"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Storage StorageConfig     `yaml:"storage"`
	Upload  UploadConfig      `yaml:"upload"`
	Auth    AuthConfig        `yaml:"auth"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Upload.Validate(); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	PublicURL string     `yaml:"public_url"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
		validation.Field(&c.PublicURL, is.URL),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig locates the data root and the index document.
type StorageConfig struct {
	DataDir     string        `yaml:"data_dir"`
	IndexFile   string        `yaml:"index_file"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.IndexFile, validation.Required),
		validation.Field(&c.LockTimeout, validation.Min(time.Duration(0))),
	)
}

// IndexPath returns the index file path. Relative names are resolved against
// the data directory.
func (c *StorageConfig) IndexPath() string {
	if filepath.IsAbs(c.IndexFile) {
		return c.IndexFile
	}
	return filepath.Join(c.DataDir, c.IndexFile)
}

// UploadConfig holds the upload size limit and extension policy.
type UploadConfig struct {
	MaxBytes   int64    `yaml:"max_bytes"`
	Policy     string   `yaml:"policy"`
	Extensions []string `yaml:"extensions"`
}

// Validate validates the upload configuration.
func (c *UploadConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.Policy, validation.In(uploads.PolicyAllowlist, uploads.PolicyDenylist)),
	)
}

// AuthConfig holds credentials and session settings.
//
// Users is a comma separated list of user:password pairs. Passwords may be
// given as bcrypt hashes (see the hash-password command). The HTTP server
// refuses to start without users; the MCP server does not need any.
type AuthConfig struct {
	Users         string          `yaml:"users"`
	SessionSecret string          `yaml:"session_secret"`
	SessionTTL    time.Duration   `yaml:"session_ttl"`
	ProtectReads  bool            `yaml:"protect_reads"`
	LoginRate     LoginRateConfig `yaml:"login_rate"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SessionSecret, validation.When(c.SessionSecret != "", validation.Length(16, 0))),
		validation.Field(&c.SessionTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.LoginRate),
	)
}

// LoginRateConfig throttles login attempts per client IP. Zero disables it.
type LoginRateConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Validate validates the login rate configuration.
func (c LoginRateConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Requests, validation.Min(0)),
		validation.Field(&c.Window, validation.When(c.Requests > 0, validation.Required)),
	)
}

// SQLiteConfig holds the search database location. An empty path disables
// search.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			DataDir:     "./data",
			IndexFile:   "notes-index.json",
			LockTimeout: indexstore.DefaultLockTimeout,
		},
		Upload: UploadConfig{
			MaxBytes: uploads.DefaultMaxBytes,
			Policy:   uploads.PolicyAllowlist,
		},
		Auth: AuthConfig{
			SessionTTL: 24 * time.Hour,
			LoginRate: LoginRateConfig{
				Requests: 5,
				Window:   time.Minute,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
	}
}
