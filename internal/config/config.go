package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/genricoloni/mediagrab/internal/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"go.yaml.in/yaml/v3"
)

const (
	EnvPrefix  = "MEDIAGRAB"
	configName = "config"

	defaultDownloadDir    = "download"
	defaultRegionSelector = "#player"
	defaultTitleSelector  = ".video-wrapper .title .inlineFree"
	defaultExt            = "mp4"
	defaultChunkSize      = 1024
	maxChunkSize          = 4 << 20
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.159 Safari/537.36"
	defaultAccept         = "application/json, text/javascript, */*; q=0.01"
)

// AppConfig holds application configuration
type AppConfig struct {
	DownloadDir     string            `mapstructure:"download_dir"`
	RegionSelector  string            `mapstructure:"region_selector"`
	TitleSelector   string            `mapstructure:"title_selector"`
	DefaultExt      string            `mapstructure:"default_ext"`
	ChunkSize       int               `mapstructure:"chunk_size"`
	RequestTimeout  time.Duration     `mapstructure:"request_timeout"`
	DownloadTimeout time.Duration     `mapstructure:"download_timeout"` // 0 disables the limit
	KeepPartial     bool              `mapstructure:"keep_partial"`
	Headers         map[string]string `mapstructure:"headers"`
	Cookies         map[string]string `mapstructure:"cookies"`
	// CookieString is a raw "a=1; b=2" header merged over Cookies
	CookieString string      `mapstructure:"cookie_string"`
	Notify       bool        `mapstructure:"notify"`
	Cover        CoverConfig `mapstructure:"cover"`
	Log          LogConfig   `mapstructure:"log"`
}

// CoverConfig controls cover image retrieval and thumbnailing
type CoverConfig struct {
	MaxBytes    int64         `mapstructure:"max_bytes"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	ThumbWidth  int           `mapstructure:"thumb_width"`
	ThumbHeight int           `mapstructure:"thumb_height"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	Output     string `mapstructure:"output"` // stdout, stderr or file
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`    // megabytes
	MaxBackups int    `mapstructure:"max_backups"` // files
	MaxAge     int    `mapstructure:"max_age"`     // days
	Compress   bool   `mapstructure:"compress"`
}

// NewViper returns a viper instance with config search paths, env binding and defaults
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "mediagrab"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	return v
}

// SetDefaults registers every key so env overrides and Unmarshal see them
func SetDefaults(v *viper.Viper) {
	v.SetDefault("download_dir", defaultDownloadDir)
	v.SetDefault("region_selector", defaultRegionSelector)
	v.SetDefault("title_selector", defaultTitleSelector)
	v.SetDefault("default_ext", defaultExt)
	v.SetDefault("chunk_size", defaultChunkSize)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("download_timeout", time.Duration(0))
	v.SetDefault("keep_partial", false)
	v.SetDefault("headers", map[string]string{
		"User-Agent": defaultUserAgent,
		"Accept":     defaultAccept,
	})
	v.SetDefault("cookies", map[string]string{})
	v.SetDefault("cookie_string", "")
	v.SetDefault("notify", false)

	v.SetDefault("cover.max_bytes", 10*1024*1024)
	v.SetDefault("cover.cache_ttl", 10*time.Minute)
	v.SetDefault("cover.thumb_width", 320)
	v.SetDefault("cover.thumb_height", 180)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file", "mediagrab.log")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)
}

// Load reads the optional config file and decodes the final settings
func Load(v *viper.Viper) (*AppConfig, error) {
	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		fromFile = false
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if fromFile {
		cookies, err := fileCookies(v.ConfigFileUsed())
		if err != nil {
			return nil, err
		}
		if len(cookies) > 0 {
			cfg.Cookies = cookies
		}
	}

	cfg.DownloadDir = expandPath(cfg.DownloadDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the decoded settings are usable
func (c *AppConfig) Validate() error {
	if c.DownloadDir == "" {
		return fmt.Errorf("download_dir must not be empty")
	}
	if c.RegionSelector == "" {
		return fmt.Errorf("region_selector must not be empty")
	}
	if c.ChunkSize <= 0 || c.ChunkSize > maxChunkSize {
		return fmt.Errorf("chunk_size must be between 1 and %d, got %d", maxChunkSize, c.ChunkSize)
	}
	if c.RequestTimeout < 0 || c.DownloadTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if c.CookieString != "" {
		if _, err := http.ParseCookie(c.CookieString); err != nil {
			return fmt.Errorf("invalid cookie_string: %w", err)
		}
	}
	return nil
}

// fileCookies re-reads the cookies section of the config file. Viper
// lowercases map keys and cookie names are case-sensitive.
func fileCookies(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw struct {
		Cookies map[string]any `yaml:"cookies"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode cookies: %w", err)
	}

	cookies := make(map[string]string, len(raw.Cookies))
	for name, value := range raw.Cookies {
		cookies[name] = fmt.Sprint(value)
	}
	return cookies, nil
}

// expandPath resolves environment variables and a leading ~
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	return p
}

// GetDownloadDir returns the directory downloaded files are written to
func (c *AppConfig) GetDownloadDir() string {
	return c.DownloadDir
}

// GetRequestTimeout bounds page, JSON and image requests
func (c *AppConfig) GetRequestTimeout() time.Duration {
	return c.RequestTimeout
}

// GetRequestOptions returns a fresh copy of the configured headers and cookies
func (c *AppConfig) GetRequestOptions() domain.RequestOptions {
	opts := domain.RequestOptions{
		Headers: c.Headers,
		Cookies: c.Cookies,
	}.Clone()

	if c.CookieString != "" {
		// Validate already rejected malformed input
		cookies, _ := http.ParseCookie(c.CookieString)
		for _, ck := range cookies {
			opts.Cookies[ck.Name] = ck.Value
		}
	}
	return opts
}
