package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	LLM struct {
		APIKey  string        `yaml:"apiKey"`
		BaseURL string        `yaml:"baseURL"`
		Model   string        `yaml:"model"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	// Inference lists the hosted classifier/report endpoints by name.
	Inference struct {
		Timeout   time.Duration                `yaml:"timeout"`
		Endpoints map[string]InferenceEndpoint `yaml:"endpoints"`
	} `yaml:"inference"`

	Redis struct {
		Addr       string        `yaml:"addr"`
		Password   string        `yaml:"password"`
		DB         int           `yaml:"db"`
		SessionTTL time.Duration `yaml:"sessionTTL"`
	} `yaml:"redis"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | "" (ledger disabled)
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint      string        `yaml:"endpoint"`
		AccessKey     string        `yaml:"accessKey"`
		SecretKey     string        `yaml:"secretKey"`
		BucketName    string        `yaml:"bucketName"`
		Region        string        `yaml:"region"`
		UseSSL        bool          `yaml:"useSSL"`
		PresignExpiry time.Duration `yaml:"presignExpiry"`
	} `yaml:"minio"`

	Admin struct {
		APIKeys map[string]string `yaml:"apiKeys"` // name -> key
	} `yaml:"admin"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`

	Catalog struct {
		Dir string `yaml:"dir"`
	} `yaml:"catalog"`
}

type InferenceEndpoint struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"apiKey"`
	RequireKey bool   `yaml:"requireKey"`
}

// Load baca file config.yaml, lalu .env dan environment override.
// File yang tidak ada bukan error: default tetap dipakai.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	applyEnv(&cfg, os.Getenv)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(c *Config) {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 90 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 10 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.Inference.Timeout == 0 {
		c.Inference.Timeout = 30 * time.Second
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.SessionTTL == 0 {
		c.Redis.SessionTTL = 30 * time.Minute
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = 5432
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Minio.PresignExpiry == 0 {
		c.Minio.PresignExpiry = 24 * time.Hour
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 60
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 1
	}
}

// applyEnv overrides secrets and addresses from the environment.
func applyEnv(c *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(strings.TrimSpace(getenv(key))); err == nil {
			*dst = v
		}
	}

	setInt(&c.Server.Port, "PORT")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Log.Format, "LOG_FORMAT")

	set(&c.LLM.APIKey, "LLM_API_KEY")
	set(&c.LLM.BaseURL, "LLM_BASE_URL")
	set(&c.LLM.Model, "LLM_MODEL")

	set(&c.Redis.Addr, "REDIS_ADDR")
	set(&c.Redis.Password, "REDIS_PASSWORD")

	set(&c.Database.Driver, "DATABASE_DRIVER")
	set(&c.Database.Host, "DATABASE_HOST")
	setInt(&c.Database.Port, "DATABASE_PORT")
	set(&c.Database.User, "DATABASE_USER")
	set(&c.Database.Password, "DATABASE_PASSWORD")
	set(&c.Database.Name, "DATABASE_NAME")

	set(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	set(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	set(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	set(&c.Minio.BucketName, "MINIO_BUCKET")

	if c.Inference.Endpoints == nil {
		c.Inference.Endpoints = map[string]InferenceEndpoint{}
	}
	for _, name := range []string{"autism", "brain-tumor", "diabetes"} {
		env := "INFERENCE_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		ep := c.Inference.Endpoints[name]
		set(&ep.URL, env+"_URL")
		set(&ep.APIKey, env+"_API_KEY")
		if ep.URL != "" || ep.APIKey != "" {
			c.Inference.Endpoints[name] = ep
		}
	}

	// ADMIN_API_KEYS=ops:key1,ci:key2
	if raw := strings.TrimSpace(getenv("ADMIN_API_KEYS")); raw != "" {
		if c.Admin.APIKeys == nil {
			c.Admin.APIKeys = map[string]string{}
		}
		for _, pair := range strings.Split(raw, ",") {
			name, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
			if !ok {
				name, key = "default", name
			}
			if key = strings.TrimSpace(key); key != "" {
				c.Admin.APIKeys[strings.TrimSpace(name)] = key
			}
		}
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Server.Port) }
