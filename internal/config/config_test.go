package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	// Point at an empty directory so no stray config.yaml is picked up
	v.AddConfigPath(t.TempDir())
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newTestViper(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.GetDownloadDir() != defaultDownloadDir {
		t.Errorf("expected download dir %q, got %q", defaultDownloadDir, cfg.GetDownloadDir())
	}
	if cfg.RegionSelector != "#player" {
		t.Errorf("expected region selector #player, got %q", cfg.RegionSelector)
	}
	if cfg.ChunkSize != 1024 {
		t.Errorf("expected chunk size 1024, got %d", cfg.ChunkSize)
	}
	if cfg.GetRequestTimeout() != 30*time.Second {
		t.Errorf("expected 30s request timeout, got %v", cfg.GetRequestTimeout())
	}
	if cfg.Cover.CacheTTL != 10*time.Minute {
		t.Errorf("expected 10m cover cache ttl, got %v", cfg.Cover.CacheTTL)
	}

	opts := cfg.GetRequestOptions()
	var userAgent, accept string
	for k, val := range opts.Headers {
		switch {
		case strings.EqualFold(k, "User-Agent"):
			userAgent = val
		case strings.EqualFold(k, "Accept"):
			accept = val
		}
	}
	if userAgent == "" {
		t.Errorf("expected a default User-Agent header, got %v", opts.Headers)
	}
	if accept != "application/json, text/javascript, */*; q=0.01" {
		t.Errorf("unexpected default Accept header %q", accept)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
download_dir: /tmp/mediagrab-test
chunk_size: 4096
request_timeout: 5s
cookie_string: "accessAgeDisclaimerPH=1; platform=pc"
cover:
  thumb_width: 100
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	SetDefaults(v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DownloadDir != "/tmp/mediagrab-test" {
		t.Errorf("download dir: got %q", cfg.DownloadDir)
	}
	if cfg.ChunkSize != 4096 {
		t.Errorf("chunk size: got %d", cfg.ChunkSize)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("request timeout: got %v", cfg.RequestTimeout)
	}
	if cfg.Cover.ThumbWidth != 100 || cfg.Cover.ThumbHeight != 180 {
		t.Errorf("cover thumb: got %dx%d", cfg.Cover.ThumbWidth, cfg.Cover.ThumbHeight)
	}

	opts := cfg.GetRequestOptions()
	if opts.Cookies["accessAgeDisclaimerPH"] != "1" || opts.Cookies["platform"] != "pc" {
		t.Errorf("cookie_string not applied with original case: %v", opts.Cookies)
	}
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(c *AppConfig)
		expectedError string
	}{
		{
			name:   "Valid",
			mutate: func(c *AppConfig) {},
		},
		{
			name:          "Empty download dir",
			mutate:        func(c *AppConfig) { c.DownloadDir = "" },
			expectedError: "download_dir",
		},
		{
			name:          "Empty region selector",
			mutate:        func(c *AppConfig) { c.RegionSelector = "" },
			expectedError: "region_selector",
		},
		{
			name:          "Zero chunk size",
			mutate:        func(c *AppConfig) { c.ChunkSize = 0 },
			expectedError: "chunk_size",
		},
		{
			name:          "Oversized chunk size",
			mutate:        func(c *AppConfig) { c.ChunkSize = maxChunkSize + 1 },
			expectedError: "chunk_size",
		},
		{
			name:   "Largest chunk size",
			mutate: func(c *AppConfig) { c.ChunkSize = maxChunkSize },
		},
		{
			name:          "Unknown log level",
			mutate:        func(c *AppConfig) { c.Log.Level = "loud" },
			expectedError: "log.level",
		},
		{
			name:          "Negative timeout",
			mutate:        func(c *AppConfig) { c.DownloadTimeout = -time.Second },
			expectedError: "timeouts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &AppConfig{DownloadDir: "d", RegionSelector: "#player", ChunkSize: 1024}
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.expectedError == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.expectedError)
			}
			if !strings.Contains(err.Error(), tt.expectedError) {
				t.Errorf("expected error %q to contain %q", err.Error(), tt.expectedError)
			}
		})
	}
}

func TestGetRequestOptions_ReturnsCopy(t *testing.T) {
	cfg := &AppConfig{Headers: map[string]string{"accept": "*/*"}, Cookies: map[string]string{}}
	opts := cfg.GetRequestOptions()
	opts.Headers["accept"] = "changed"

	if cfg.Headers["accept"] != "*/*" {
		t.Error("GetRequestOptions leaked the config map")
	}
}

func TestLoad_CookiesKeepCase(t *testing.T) {
	dir := t.TempDir()
	content := `
cookies:
  accessAgeDisclaimerPH: "1"
  _ga_B39RFFWGYY: GS1
  age: 18
cookie_string: "cookieConsent=3"
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	SetDefaults(v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]string{
		"accessAgeDisclaimerPH": "1",
		"_ga_B39RFFWGYY":        "GS1",
		"age":                   "18",
		"cookieConsent":         "3",
	}
	opts := cfg.GetRequestOptions()
	if len(opts.Cookies) != len(expected) {
		t.Fatalf("expected %d cookies, got %v", len(expected), opts.Cookies)
	}
	for name, value := range expected {
		if opts.Cookies[name] != value {
			t.Errorf("cookie %q: expected %q, got %q (all: %v)", name, value, opts.Cookies[name], opts.Cookies)
		}
	}
}

func TestLoad_RejectsUnknownLogLevel(t *testing.T) {
	v := newTestViper(t)
	v.Set("log.level", "loud")

	if _, err := Load(v); err == nil || !strings.Contains(err.Error(), "log.level") {
		t.Fatalf("expected a log.level error, got %v", err)
	}
}
