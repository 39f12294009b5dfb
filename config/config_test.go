package config

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MEDIA_STORAGE_PATH", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.DatabaseDriver != DriverSQLite {
		t.Errorf("DatabaseDriver = %q, want %q", cfg.DatabaseDriver, DriverSQLite)
	}
	if cfg.ConeProjection != ProjectionCorrected {
		t.Errorf("ConeProjection = %q, want %q", cfg.ConeProjection, ProjectionCorrected)
	}
	if cfg.StreamTimeout != 30*time.Second {
		t.Errorf("StreamTimeout = %s, want 30s", cfg.StreamTimeout)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("JWTTTL = %s, want 24h", cfg.JWTTTL)
	}
	if len(cfg.StaticAPITokens) != 0 {
		t.Errorf("StaticAPITokens = %v, want empty", cfg.StaticAPITokens)
	}
}

func TestLoadConfig_StaticTokenList(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MEDIA_STORAGE_PATH", t.TempDir())
	t.Setenv("STATIC_API_TOKENS", " current , ,previous")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	want := []string{"current", "previous"}
	if len(cfg.StaticAPITokens) != len(want) {
		t.Fatalf("StaticAPITokens = %v, want %v", cfg.StaticAPITokens, want)
	}
	for i := range want {
		if cfg.StaticAPITokens[i] != want[i] {
			t.Errorf("StaticAPITokens[%d] = %q, want %q", i, cfg.StaticAPITokens[i], want[i])
		}
	}
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MEDIA_STORAGE_PATH", t.TempDir())
	t.Setenv("THUMBNAIL_MAX_SIZE", "-5")
	t.Setenv("STREAM_TIMEOUT", "soon")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.ThumbnailMaxSize != defaultThumbnailMaxSize {
		t.Errorf("ThumbnailMaxSize = %d, want %d", cfg.ThumbnailMaxSize, defaultThumbnailMaxSize)
	}
	if cfg.StreamTimeout != defaultStreamTimeout {
		t.Errorf("StreamTimeout = %s, want %s", cfg.StreamTimeout, defaultStreamTimeout)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		DatabaseDriver:  DriverSQLite,
		DatabasePath:    "x.db",
		JWTSecret:       "s",
		ConeProjection:  ProjectionFlat,
		StreamOriginURL: "http://origin:8888",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, true},
		{"postgres without url", func(c *Config) { c.DatabaseDriver = DriverPostgres }, true},
		{"postgres with url", func(c *Config) { c.DatabaseDriver = DriverPostgres; c.DatabaseURL = "postgres://x" }, false},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"unknown projection", func(c *Config) { c.ConeProjection = "mercator" }, true},
		{"bad origin", func(c *Config) { c.StreamOriginURL = "not a url" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
