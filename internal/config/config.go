package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Lessons struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"lessons"`
	Sessions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"sessions"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
		TokenTTL  string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Storage struct {
		Minio struct {
			Endpoint  string `yaml:"endpoint"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
			Bucket    string `yaml:"bucket"`
			UseSSL    bool   `yaml:"use_ssl"`
			URLExpiry string `yaml:"url_expiry"`
		} `yaml:"minio"`
	} `yaml:"storage"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Analytics struct {
		StrugglingThreshold int `yaml:"struggling_threshold"`
		LeaderboardLimit    int `yaml:"leaderboard_limit"`
	} `yaml:"analytics"`
}

// Load reads YAML config from path. A missing file yields an empty config so
// the service can run from environment variables alone. Environment
// overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override(&cfg.Server.Port, "PORT")
	override(&cfg.Postgres.URL, "POSTGRES_URL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	override(&cfg.Storage.Minio.Endpoint, "MINIO_ENDPOINT")
	override(&cfg.Storage.Minio.AccessKey, "MINIO_ACCESS_KEY")
	override(&cfg.Storage.Minio.SecretKey, "MINIO_SECRET_KEY")
	override(&cfg.Log.Level, "LOG_LEVEL")
}

func override(field *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*field = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
