package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	ML        MLConfig        `mapstructure:"ml"`
	Index     IndexConfig     `mapstructure:"index"`
	Integrity IntegrityConfig `mapstructure:"integrity"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the relational store holding the gallery tables.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

// IndexConfig chooses who rebuilds the similarity index after descriptor writes.
type IndexConfig struct {
	Provider string       `mapstructure:"provider"` // ml or qdrant
	Qdrant   QdrantConfig `mapstructure:"qdrant"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Dimension  int    `mapstructure:"dimension"`
}

// IntegrityConfig holds the defaults for reconciliation thresholds.
// Values stored in the settings table override these at runtime.
type IntegrityConfig struct {
	PageSize          int     `mapstructure:"page_size"`
	WriteChunkSize    int     `mapstructure:"write_chunk_size"`
	SampleLimit       int     `mapstructure:"sample_limit"`
	MaxRowsPerTable   int     `mapstructure:"max_rows_per_table"`
	DefaultConfidence float64 `mapstructure:"default_confidence"`
	MergeConfidence   float64 `mapstructure:"merge_confidence"`
	OutlierThreshold  float64 `mapstructure:"outlier_threshold"`
	MinDescriptors    int     `mapstructure:"min_descriptors"`
}

// StorageConfig configures the S3-compatible bucket used to archive scan reports.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	// RetainReports keeps only the newest N archived reports; 0 keeps all.
	RetainReports int `mapstructure:"retain_reports"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Credentials are usually injected by the deployment environment
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("ml.base_url", "ML_BASE_URL")
	v.BindEnv("ml.api_key", "ML_API_KEY")
	v.BindEnv("index.qdrant.host", "QDRANT_HOST")
	v.BindEnv("index.qdrant.port", "QDRANT_PORT")
	v.BindEnv("index.qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/gallery.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("ml.base_url", "http://localhost:5001")
	v.SetDefault("ml.timeout", 30*time.Second)
	v.SetDefault("ml.retry_count", 2)

	v.SetDefault("index.provider", IndexProviderML)
	v.SetDefault("index.qdrant.host", "localhost")
	v.SetDefault("index.qdrant.port", 6334)
	v.SetDefault("index.qdrant.collection", "face_descriptors")
	v.SetDefault("index.qdrant.dimension", 512)

	v.SetDefault("integrity.page_size", 1000)
	v.SetDefault("integrity.write_chunk_size", 100)
	v.SetDefault("integrity.sample_limit", 20)
	v.SetDefault("integrity.max_rows_per_table", 200000)
	v.SetDefault("integrity.default_confidence", 0.5)
	v.SetDefault("integrity.merge_confidence", 0.6)
	v.SetDefault("integrity.outlier_threshold", 0.5)
	v.SetDefault("integrity.min_descriptors", 3)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucket", "facecheck-reports")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("storage.retain_reports", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

const (
	IndexProviderML     = "ml"
	IndexProviderQdrant = "qdrant"
)

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	switch c.Index.Provider {
	case IndexProviderML, IndexProviderQdrant:
	default:
		return fmt.Errorf("index: unknown provider %q", c.Index.Provider)
	}
	if c.Storage.RetainReports < 0 {
		return fmt.Errorf("storage: retain_reports must not be negative")
	}
	if err := c.ML.Validate(); err != nil {
		return err
	}
	return c.Integrity.Validate()
}

// Validate checks threshold ranges.
func (c *IntegrityConfig) Validate() error {
	if c.PageSize <= 0 {
		return fmt.Errorf("integrity: page_size must be positive")
	}
	if c.WriteChunkSize <= 0 {
		return fmt.Errorf("integrity: write_chunk_size must be positive")
	}
	if c.MinDescriptors < 1 {
		return fmt.Errorf("integrity: min_descriptors must be at least 1")
	}
	for name, value := range map[string]float64{
		"default_confidence": c.DefaultConfidence,
		"merge_confidence":   c.MergeConfidence,
		"outlier_threshold":  c.OutlierThreshold,
	} {
		if value < 0 || value > 1 {
			return fmt.Errorf("integrity: %s must be within [0, 1], got %v", name, value)
		}
	}
	return nil
}
