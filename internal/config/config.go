package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database backends understood by the repository factory.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// DefaultJWTSecret is only meant for local development.
const DefaultJWTSecret = "development-secret"

const defaultAddress = ":8080"

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Generation GenerationConfig `mapstructure:"generation"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Auth       AuthConfig       `mapstructure:"auth"`
	CORS       CORSConfig       `mapstructure:"cors"`
	S3         S3Config         `mapstructure:"s3"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// DefaultSecretInRelease reports whether a release-mode server would sign
// tokens with DefaultJWTSecret.
func (c Config) DefaultSecretInRelease() bool {
	return strings.EqualFold(strings.TrimSpace(c.Server.Mode), "release") &&
		strings.TrimSpace(c.JWT.Secret) == DefaultJWTSecret
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"` // gin mode: debug, release, test
}

type LogConfig struct {
	Mode string `mapstructure:"mode"` // dev or prod
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	URL         string `mapstructure:"url"` // postgres DSN
	MongoURI    string `mapstructure:"mongo_uri"`
	Name        string `mapstructure:"name"` // mongo database name
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// Backend resolves which store implementation to use. An explicit driver
// wins; otherwise a configured DSN means postgres and nothing means memory.
func (d DatabaseConfig) Backend() string {
	switch strings.ToLower(strings.TrimSpace(d.Driver)) {
	case BackendPostgres, "pg":
		return BackendPostgres
	case BackendMongo, "mongodb":
		return BackendMongo
	case BackendMemory:
		return BackendMemory
	}
	if strings.TrimSpace(d.URL) != "" {
		return BackendPostgres
	}
	return BackendMemory
}

// GenerationConfig configures the plan generation provider.
type GenerationConfig struct {
	Model    string        `mapstructure:"model"`
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	MockMode bool          `mapstructure:"mock_mode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// UseMock reports whether plans are synthesised locally instead of calling
// the provider. Missing credentials force mock mode.
func (g GenerationConfig) UseMock() bool {
	return g.MockMode || strings.TrimSpace(g.APIKey) == ""
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type AuthConfig struct {
	DevLoginEnabled bool `mapstructure:"dev_login_enabled"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AllowAll reports whether any origin is accepted.
func (c CORSConfig) AllowAll() bool {
	for _, o := range c.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return len(c.AllowedOrigins) == 0
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether plan artefacts should be archived to S3.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.BucketName) != ""
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// legacyEnv maps config keys to the variable names the original deployment used.
var legacyEnv = map[string][]string{
	"generation.api_key":   {"GENERATION_API_KEY", "DEEPSEEK_API_KEY"},
	"generation.endpoint":  {"GENERATION_ENDPOINT", "DEEPSEEK_API_URL"},
	"generation.model":     {"GENERATION_MODEL", "DEEPSEEK_MODEL"},
	"generation.mock_mode": {"GENERATION_MOCK_MODE", "DEEPSEEK_MOCK_MODE"},
	"database.url":         {"DATABASE_URL"},
	"jwt.secret":           {"JWT_SECRET"},
	"jwt.expiration":       {"JWT_EXPIRATION", "JWT_EXPIRES_IN"},
	"cors.allowed_origins": {"CORS_ALLOWED_ORIGINS"},
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, generation.api_key -> GENERATION_API_KEY
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)
	for key, names := range legacyEnv {
		if err = v.BindEnv(append([]string{key}, names...)...); err != nil {
			return
		}
	}
	if err = v.BindEnv("server.address"); err != nil {
		return
	}
	if err = v.BindEnv("port", "PORT"); err != nil {
		return
	}

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		// No file is fine; defaults and env vars cover everything.
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}

	// PORT is what most PaaS runtimes hand out; it only applies when no
	// explicit address was configured.
	if strings.TrimSpace(config.Server.Address) == "" {
		config.Server.Address = defaultAddress
		if port := strings.TrimSpace(v.GetString("port")); port != "" {
			config.Server.Address = ":" + port
		}
	}
	config.CORS.AllowedOrigins = normalizeOrigins(config.CORS.AllowedOrigins)

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.mode", "dev")

	v.SetDefault("database.driver", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "pb_assistant")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("generation.model", "deepseek-chat")
	v.SetDefault("generation.endpoint", "https://api.deepseek.com/v1/chat/completions")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.mock_mode", false)
	v.SetDefault("generation.timeout", "60s")

	v.SetDefault("jwt.secret", DefaultJWTSecret)
	v.SetDefault("jwt.expiration", "168h")
	v.SetDefault("auth.dev_login_enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "pb-assistant")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
