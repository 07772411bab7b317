package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"onechurch/logger"
)

type Config struct {
	Port    string `yaml:"port"`
	Env     string `yaml:"env"`
	GinMode string `yaml:"ginMode"`

	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	Auth struct {
		AccessTokenSecret  string        `yaml:"accessTokenSecret"`
		AccessTokenExpiry  time.Duration `yaml:"accessTokenExpiry"`
		RefreshTokenSecret string        `yaml:"refreshTokenSecret"`
		RefreshTokenExpiry time.Duration `yaml:"refreshTokenExpiry"`
	} `yaml:"auth"`

	CORSOrigins []string `yaml:"corsOrigins"`
	ClientURL   string   `yaml:"clientUrl"`

	Cloudinary struct {
		URL       string `yaml:"url"`
		CloudName string `yaml:"cloudName"`
		APIKey    string `yaml:"apiKey"`
		APISecret string `yaml:"apiSecret"`
	} `yaml:"cloudinary"`

	RedisURL string `yaml:"redisUrl"`

	Push struct {
		VAPIDPublicKey  string `yaml:"vapidPublicKey"`
		VAPIDPrivateKey string `yaml:"vapidPrivateKey"`
		Subject         string `yaml:"subject"`
	} `yaml:"push"`
}

// Defaults returns a Config with every optional value filled in.
func Defaults() *Config {
	cfg := &Config{
		Port:        "8000",
		Env:         "development",
		CORSOrigins: []string{"http://localhost:5173"},
		ClientURL:   "http://localhost:5173",
	}
	cfg.Mongo.Database = "onechurch"
	cfg.Auth.AccessTokenExpiry = time.Hour
	cfg.Auth.RefreshTokenExpiry = 7 * 24 * time.Hour
	cfg.Push.Subject = "mailto:admin@onechurch.app"
	return cfg
}

// Load reads .env (if present), then the YAML file at path (if non-empty and
// present), then lets environment variables override both.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info.Printf("No .env file loaded: %v", err)
	}

	cfg := Defaults()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
			logger.Warn.Printf("Config file %s not found, using environment only", path)
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.Env, "NODE_ENV", "ENV")
	setString(&c.GinMode, "GIN_MODE")
	setString(&c.Mongo.URI, "MONGODB_URI", "MONGO_URI")
	setString(&c.Mongo.Database, "MONGO_DB")
	setString(&c.Auth.AccessTokenSecret, "ACCESS_TOKEN_SECRET")
	setString(&c.Auth.RefreshTokenSecret, "REFRESH_TOKEN_SECRET")
	setString(&c.ClientURL, "CLIENT_URL")
	setString(&c.Cloudinary.URL, "CLOUDINARY_URL")
	setString(&c.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME")
	setString(&c.Cloudinary.APIKey, "CLOUDINARY_API_KEY")
	setString(&c.Cloudinary.APISecret, "CLOUDINARY_API_SECRET")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.Push.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	setString(&c.Push.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")
	setString(&c.Push.Subject, "VAPID_SUBJECT")

	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if err := setDuration(&c.Auth.AccessTokenExpiry, "ACCESS_TOKEN_EXPIRY"); err != nil {
		return err
	}
	return setDuration(&c.Auth.RefreshTokenExpiry, "REFRESH_TOKEN_EXPIRY")
}

// setString assigns the last non-empty variable among keys.
func setString(dst *string, keys ...string) {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
		}
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// CloudinaryURL returns CLOUDINARY_URL or one assembled from its parts.
func (c *Config) CloudinaryURL() string {
	if c.Cloudinary.URL != "" {
		return c.Cloudinary.URL
	}
	if c.Cloudinary.CloudName == "" || c.Cloudinary.APIKey == "" || c.Cloudinary.APISecret == "" {
		return ""
	}
	return fmt.Sprintf("cloudinary://%s:%s@%s", c.Cloudinary.APIKey, c.Cloudinary.APISecret, c.Cloudinary.CloudName)
}

// Validate checks required settings. needMongo is true when the mongo store is used.
func (c *Config) Validate(needMongo bool) error {
	if c.Auth.AccessTokenSecret == "" {
		return fmt.Errorf("ACCESS_TOKEN_SECRET is required")
	}
	if needMongo && c.Mongo.URI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.Auth.AccessTokenExpiry <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY must be positive")
	}
	if c.Auth.RefreshTokenSecret == "" {
		c.Auth.RefreshTokenSecret = c.Auth.AccessTokenSecret
	}
	return nil
}
