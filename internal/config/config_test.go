package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test, like
// testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir()) // no .env here

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "shokucho.db", cfg.DatabaseURL)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 5, cfg.ForumMaxTags)
	assert.Equal(t, 1000, cfg.ForumMaxCommentLength)
	assert.Equal(t, []string{"<", ">", "script", "http"}, cfg.ForumForbiddenWords)
	assert.Equal(t, 90, cfg.ImageJPEGQuality)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes())
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Empty(t, cfg.LogFile)
	assert.False(t, cfg.EnvFileLoaded)
}

func TestLoad_FromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("FORUM_MAX_TAGS", "3")
	t.Setenv("FORUM_FORBIDDEN_TAG_WORDS", " spam , ,ad ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shokucho.jp,https://www.shokucho.jp")
	t.Setenv("IMAGE_JPEG_QUALITY", "not-a-number")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 127.0.0.1")
	t.Setenv("LOG_FILE", "/var/log/shokucho.log")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.ForumMaxTags)
	assert.Equal(t, []string{"spam", "ad"}, cfg.ForumForbiddenWords)
	assert.Equal(t, []string{"https://shokucho.jp", "https://www.shokucho.jp"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 90, cfg.ImageJPEGQuality)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.TrustedProxies)
	assert.Equal(t, "/var/log/shokucho.log", cfg.LogFile)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"HTTP_PORT":          "eighty",
		"FORUM_MAX_TAGS":     "0",
		"IMAGE_JPEG_QUALITY": "150",
		"DATABASE_URL":       "",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvAsList_EmptyFallsBack(t *testing.T) {
	t.Setenv("LIST", " , ")
	assert.Equal(t, []string{"x"}, getEnvAsList("LIST", []string{"x"}))
}
