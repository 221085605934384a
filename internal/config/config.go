package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
	Upload  UploadConfig  `yaml:"upload" mapstructure:"upload"`
	Admin   AdminConfig   `yaml:"admin" mapstructure:"admin"`
	Session SessionConfig `yaml:"session" mapstructure:"session"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// StorageConfig configures the hosted object storage service.
type StorageConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Bucket  string `yaml:"bucket" mapstructure:"bucket"`
	Key     string `yaml:"key" mapstructure:"key"`
}

// AuthConfig configures the hosted authentication service.
type AuthConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Key         string `yaml:"key" mapstructure:"key"`
	RedirectURL string `yaml:"redirect_url" mapstructure:"redirect_url"`
}

// UploadConfig configures photo processing and upload behavior.
type UploadConfig struct {
	MaxDimension int `yaml:"max_dimension" mapstructure:"max_dimension"`
	ThumbnailDim int `yaml:"thumbnail_dim" mapstructure:"thumbnail_dim"`
	JPEGQuality  int `yaml:"jpeg_quality" mapstructure:"jpeg_quality"`
	ChunkSize    int `yaml:"chunk_size" mapstructure:"chunk_size"`
}

// AdminConfig configures the moderation review feeds.
type AdminConfig struct {
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
}

// SessionConfig configures local auth session persistence.
type SessionConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BENCHRADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("storage.bucket", "bench-photos")
	v.SetDefault("upload.max_dimension", 1600)
	v.SetDefault("upload.thumbnail_dim", 300)
	v.SetDefault("upload.jpeg_quality", 82)
	v.SetDefault("upload.chunk_size", 3)
	v.SetDefault("admin.page_size", 20)
	v.SetDefault("session.dir", ".benchradar")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
