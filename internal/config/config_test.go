package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_LOGIN_ATTEMPTS", "")
	t.Setenv("ALLOWED_HOSTS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, 5, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, 120, cfg.Auth.LockDurationMinutes)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, int64(10<<20), cfg.Assets.MaxUploadBytes)
	assert.Same(t, cfg, Get())
}

func TestLoadRejectsNegativeConcurrency(t *testing.T) {
	t.Setenv("NEWSLETTER_SEND_CONCURRENCY", "-1")

	_, err := Load()
	assert.ErrorContains(t, err, "NEWSLETTER_SEND_CONCURRENCY")
}

func TestGetPostgresDSN(t *testing.T) {
	cases := map[string]string{
		"postgresql://app:s3cr:et@db.internal:6543/site?sslmode=require": "host=db.internal port=6543 user=app dbname=site sslmode=require password=s3cr:et",
		"postgres://app@localhost/site":                                  "host=localhost port=5432 user=app dbname=site sslmode=disable",
		"postgres://app:pw@db":                                           "host=db port=5432 user=app dbname=postgres sslmode=disable password=pw",
		"host=db user=app dbname=site":                                   "host=db user=app dbname=site",
	}
	for url, want := range cases {
		c := DatabaseConfig{URL: url}
		assert.Equal(t, want, c.GetPostgresDSN(), url)
	}
}

func TestDatabaseKind(t *testing.T) {
	pg := DatabaseConfig{URL: "postgres://app@db/site"}
	lite := DatabaseConfig{URL: "sqlite:///./data/site.db"}

	assert.True(t, pg.IsPostgres())
	assert.False(t, lite.IsPostgres())
	assert.Equal(t, "./data/site.db", lite.GetSQLitePath())
}
