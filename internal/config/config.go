package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	DatabaseURL string
	LogLevel    string
	LogFile     string
	AppEnv      string

	ForumMaxTags          int
	ForumMaxCommentLength int
	ForumMaxBodyLength    int
	ForumMaxTitleLength   int
	ForumForbiddenWords   []string

	ImageJPEGQuality int
	ImageMaxUploadMB int

	RateLimitPerMinute int
	RateLimitBurst     int

	CORSAllowedOrigins []string
	TrustedProxies     []string

	// EnvFileLoaded reports whether a .env file was found.
	EnvFileLoaded bool
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// MaxUploadBytes is the total multipart upload limit for image conversion.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.ImageMaxUploadMB) << 20
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil // Load .env file if it exists

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "shokucho.db"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		LogFile:     getEnv("LOG_FILE", ""),
		AppEnv:      getEnv("APP_ENV", "development"),

		ForumMaxTags:          getEnvAsInt("FORUM_MAX_TAGS", 5),
		ForumMaxCommentLength: getEnvAsInt("FORUM_MAX_COMMENT_LENGTH", 1000),
		ForumMaxBodyLength:    getEnvAsInt("FORUM_MAX_BODY_LENGTH", 5000),
		ForumMaxTitleLength:   getEnvAsInt("FORUM_MAX_TITLE_LENGTH", 100),
		ForumForbiddenWords:   getEnvAsList("FORUM_FORBIDDEN_TAG_WORDS", []string{"<", ">", "script", "http"}),

		ImageJPEGQuality: getEnvAsInt("IMAGE_JPEG_QUALITY", 90),
		ImageMaxUploadMB: getEnvAsInt("IMAGE_MAX_UPLOAD_MB", 50),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 5),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TrustedProxies:     getEnvAsList("TRUSTED_PROXIES", nil),

		EnvFileLoaded: loaded,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if _, err := strconv.Atoi(c.HTTPPort); err != nil {
		return fmt.Errorf("HTTP_PORT must be a number, got %q", c.HTTPPort)
	}
	for name, v := range map[string]int{
		"FORUM_MAX_TAGS":           c.ForumMaxTags,
		"FORUM_MAX_COMMENT_LENGTH": c.ForumMaxCommentLength,
		"FORUM_MAX_BODY_LENGTH":    c.ForumMaxBodyLength,
		"FORUM_MAX_TITLE_LENGTH":   c.ForumMaxTitleLength,
		"IMAGE_MAX_UPLOAD_MB":      c.ImageMaxUploadMB,
		"RATE_LIMIT_PER_MINUTE":    c.RateLimitPerMinute,
		"RATE_LIMIT_BURST":         c.RateLimitBurst,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.ImageJPEGQuality < 1 || c.ImageJPEGQuality > 100 {
		return fmt.Errorf("IMAGE_JPEG_QUALITY must be between 1 and 100, got %d", c.ImageJPEGQuality)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
