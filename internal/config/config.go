package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Files    FilesConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Drive    DriveConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	BasePath       string
	MaxUploadBytes int64
}

type DatabaseConfig struct {
	// Driver is postgres (lib/pq), pgx (pgx stdlib) or memory.
	Driver          string
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MaxConcurrentTx int64
	MigrateOnStart  bool
}

type StorageConfig struct {
	// Driver is http, minio or memory.
	Driver        string
	URL           string
	Credential    string
	DefaultBucket string
	Timeout       time.Duration
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
}

type FilesConfig struct {
	TransitionPolicy   string
	DeleteObjects      bool
	RequireStoragePath bool
}

type CacheConfig struct {
	Enabled       bool
	Driver        string
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
	MemorySize    int
}

type AuthConfig struct {
	JWKSURL  string
	Secret   string
	Issuer   string
	Audience string
}

// Enabled reports whether the API group should require a bearer token.
func (a AuthConfig) Enabled() bool {
	return a.JWKSURL != "" || a.Secret != ""
}

type DriveConfig struct {
	CredentialsJSON string
	MaxBytes        int64
}

func (d DriveConfig) Enabled() bool {
	return d.CredentialsJSON != ""
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads .env files (if present) and the environment into a new Config.
// Each call builds its own viper instance, so callers own the result.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			BasePath:       normalizeBasePath(v.GetString("SERVER_BASE_PATH")),
			MaxUploadBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("DB_DRIVER")),
			URL:             v.GetString("DATABASE_URL"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			MaxConcurrentTx: v.GetInt64("DB_MAX_CONCURRENT_TX"),
			MigrateOnStart:  v.GetBool("DB_MIGRATE_ON_START"),
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(v.GetString("STORAGE_DRIVER")),
			URL:           v.GetString("STORAGE_URL"),
			Credential:    v.GetString("STORAGE_CREDENTIAL"),
			DefaultBucket: v.GetString("STORAGE_DEFAULT_BUCKET"),
			Timeout:       v.GetDuration("STORAGE_TIMEOUT"),
			AccessKey:     v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:     v.GetString("STORAGE_SECRET_KEY"),
			Region:        v.GetString("STORAGE_REGION"),
			UseSSL:        v.GetBool("STORAGE_USE_SSL"),
		},
		Files: FilesConfig{
			TransitionPolicy:   strings.ToLower(v.GetString("FILES_TRANSITION_POLICY")),
			DeleteObjects:      v.GetBool("FILES_DELETE_OBJECTS"),
			RequireStoragePath: v.GetBool("FILES_REQUIRE_STORAGE_PATH"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			Driver:        strings.ToLower(v.GetString("CACHE_DRIVER")),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTLSeconds:    v.GetInt("CACHE_FILES_TTL_SECONDS"),
			MemorySize:    v.GetInt("CACHE_MEMORY_SIZE"),
		},
		Auth: AuthConfig{
			JWKSURL:  v.GetString("AUTH_JWKS_URL"),
			Secret:   v.GetString("AUTH_JWT_SECRET"),
			Issuer:   v.GetString("AUTH_ISSUER"),
			Audience: v.GetString("AUTH_AUDIENCE"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("DRIVE_CREDENTIALS_JSON"),
			MaxBytes:        v.GetInt64("DRIVE_MAX_BYTES"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: strings.ToLower(v.GetString("LOG_FORMAT")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER_BASE_PATH", "/api")
	v.SetDefault("UPLOAD_MAX_BYTES", 50<<20)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "bizdir")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("DB_MAX_CONCURRENT_TX", 10)
	v.SetDefault("DB_MIGRATE_ON_START", false)

	v.SetDefault("STORAGE_DRIVER", "http")
	v.SetDefault("STORAGE_URL", "")
	v.SetDefault("STORAGE_CREDENTIAL", "")
	v.SetDefault("STORAGE_DEFAULT_BUCKET", "")
	v.SetDefault("STORAGE_TIMEOUT", "60s")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", false)

	v.SetDefault("FILES_TRANSITION_POLICY", "strict")
	v.SetDefault("FILES_DELETE_OBJECTS", false)
	v.SetDefault("FILES_REQUIRE_STORAGE_PATH", false)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_DRIVER", "redis")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_FILES_TTL_SECONDS", 30)
	v.SetDefault("CACHE_MEMORY_SIZE", 16)

	v.SetDefault("AUTH_JWKS_URL", "")
	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("AUTH_ISSUER", "")
	v.SetDefault("AUTH_AUDIENCE", "")

	v.SetDefault("DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("DRIVE_MAX_BYTES", 50<<20)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
}

// Validate rejects combinations the adapters cannot work with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "pgx", "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.Storage.Driver {
	case "http":
		if c.Storage.URL == "" || c.Storage.Credential == "" {
			return fmt.Errorf("STORAGE_URL and STORAGE_CREDENTIAL are required for the http storage driver")
		}
		if _, err := url.ParseRequestURI(c.Storage.URL); err != nil {
			return fmt.Errorf("invalid STORAGE_URL: %w", err)
		}
	case "minio":
		if c.Storage.URL == "" || c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("STORAGE_URL, STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required for the minio storage driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}

	switch c.Files.TransitionPolicy {
	case "strict", "lenient":
	default:
		return fmt.Errorf("unsupported FILES_TRANSITION_POLICY %q", c.Files.TransitionPolicy)
	}

	if c.Cache.Enabled {
		switch c.Cache.Driver {
		case "redis", "memory":
		default:
			return fmt.Errorf("unsupported CACHE_DRIVER %q", c.Cache.Driver)
		}
	}

	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// DSN returns the connection string for database/sql drivers.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return d.connURL("postgres")
}

// MigrateURL returns the pgx5:// URL golang-migrate expects.
func (d DatabaseConfig) MigrateURL() string {
	if d.URL != "" {
		if u, err := url.Parse(d.URL); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
			u.Scheme = "pgx5"
			return u.String()
		}
		return d.URL
	}
	return d.connURL("pgx5")
}

// connURL escapes credentials so passwords with spaces or quotes survive.
func (d DatabaseConfig) connURL(scheme string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	return "/" + strings.Trim(p, "/")
}
