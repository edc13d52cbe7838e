package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

const DefaultBackendURL = "http://localhost:8000/api"

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"readTimeout"`
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		IdleTimeout  time.Duration `yaml:"idleTimeout"`
	} `yaml:"server"`

	Backend struct {
		URL string `yaml:"url"`
		// Zero means wait for as long as the backend takes.
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`

	Upload struct {
		MaxBytes int64 `yaml:"maxBytes"`
	} `yaml:"upload"`

	Session struct {
		MaxIdle       time.Duration `yaml:"maxIdle"`
		SweepSchedule string        `yaml:"sweepSchedule"`
	} `yaml:"session"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
		Prefix     string `yaml:"prefix"`
	} `yaml:"minio"`
}

// overrides are read from the environment after the yaml file.
type overrides struct {
	DjangoURL        string   `env:"DJANGO_URL"`
	PublicBackendURL string   `env:"NEXT_PUBLIC_BACKEND_URL"`
	Port             int      `env:"PORT"`
	LogLevel         string   `env:"LOG_LEVEL"`
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	MinioEnabled     string   `env:"MINIO_ENABLED"`
	MinioEndpoint    string   `env:"MINIO_ENDPOINT"`
	MinioAccessKey   string   `env:"MINIO_ACCESS_KEY"`
	MinioSecretKey   string   `env:"MINIO_SECRET_KEY"`
	MinioBucket      string   `env:"MINIO_BUCKET"`
}

// Default returns the settings used when neither file nor env says otherwise.
func Default() *Config {
	var c Config
	c.Server.Port = 3000
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 0 // answers may take as long as the model does
	c.Server.IdleTimeout = 60 * time.Second
	c.Backend.URL = DefaultBackendURL
	c.Upload.MaxBytes = 10 << 20
	c.Session.MaxIdle = 2 * time.Hour
	c.Session.SweepSchedule = "@every 5m"
	c.RateLimit.Capacity = 30
	c.RateLimit.RefillRate = 1
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Minio.BucketName = "estate-uploads"
	c.Minio.Prefix = "uploads"
	return &c
}

// Load baca config.yaml (optional) lalu override dari env
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// env only
	default:
		return nil, err
	}

	var o overrides
	if err := env.Parse(&o); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.apply(o); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) apply(o overrides) error {
	// DJANGO_URL wins over NEXT_PUBLIC_BACKEND_URL
	switch {
	case o.DjangoURL != "":
		c.Backend.URL = o.DjangoURL
	case o.PublicBackendURL != "":
		c.Backend.URL = o.PublicBackendURL
	}
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
	if len(o.AllowedOrigins) > 0 {
		c.CORS.AllowedOrigins = o.AllowedOrigins
	}
	if o.MinioEnabled != "" {
		on, err := strconv.ParseBool(o.MinioEnabled)
		if err != nil {
			return fmt.Errorf("invalid MINIO_ENABLED: %q", o.MinioEnabled)
		}
		c.Minio.Enabled = on
	}
	if o.MinioEndpoint != "" {
		c.Minio.Endpoint = o.MinioEndpoint
	}
	if o.MinioAccessKey != "" {
		c.Minio.AccessKey = o.MinioAccessKey
	}
	if o.MinioSecretKey != "" {
		c.Minio.SecretKey = o.MinioSecretKey
	}
	if o.MinioBucket != "" {
		c.Minio.BucketName = o.MinioBucket
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend url: %q", c.Backend.URL)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.maxBytes must be positive")
	}
	if c.Session.MaxIdle <= 0 {
		return fmt.Errorf("session.maxIdle must be positive")
	}
	if c.RateLimit.Capacity <= 0 || c.RateLimit.RefillRate <= 0 {
		return fmt.Errorf("rateLimit capacity and refillRate must be positive")
	}
	if c.Minio.Enabled {
		if c.Minio.Endpoint == "" || c.Minio.BucketName == "" {
			return fmt.Errorf("minio enabled but endpoint or bucket is missing")
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %q (allowed: json, text)", c.Log.Format)
	}
	return nil
}

// Addr untuk http.Server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
