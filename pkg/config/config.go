package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "500ms" or "2s" parse.
// Bare numbers are read as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Tag {
	case "!!int", "!!float":
		var seconds float64
		if err := value.Decode(&seconds); err != nil {
			return fmt.Errorf("invalid duration value on line %d", value.Line)
		}
		*d = Duration(time.Duration(seconds * float64(time.Second)))
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration value on line %d", value.Line)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all configuration options for the migration pipeline
type Config struct {
	// Source site identity
	Site SiteConfig `yaml:"site"`

	// Fetch layer settings (workers, pacing, retries)
	Fetch FetchConfig `yaml:"fetch"`

	// Archive stage output layout
	Archive ArchiveConfig `yaml:"archive"`

	// Media consolidation settings
	Dedup DedupConfig `yaml:"dedup"`

	// Export stage settings
	Export ExportConfig `yaml:"export"`

	// Permalink discovery settings
	Discover DiscoverConfig `yaml:"discover"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// SiteConfig identifies the source blog
type SiteConfig struct {
	URL    string `yaml:"url"`
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
	// Extra hosts whose files are treated as shared assets (CDNs,
	// the blog platform's static host)
	SharedHosts []string `yaml:"shared_hosts"`
}

// FetchConfig holds fetch layer configuration
type FetchConfig struct {
	Workers int `yaml:"workers"`
	// Pause between consecutive requests each worker makes to the
	// source host; third-party asset hosts are not paced
	RequestDelay Duration `yaml:"request_delay"`
	// Global ceiling across all workers, 0 disables
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	Timeout           Duration `yaml:"timeout"`
	MaxRetries        int      `yaml:"max_retries"`
	RetryBaseDelay    Duration `yaml:"retry_base_delay"`
	// Backoff strategy name: exponential, linear or constant
	Backoff   string `yaml:"backoff"`
	UserAgent string `yaml:"user_agent"`
}

// ArchiveConfig holds archive tree layout configuration
type ArchiveConfig struct {
	// Root of the archive: one HTML file per document, one folder
	// per document for its private assets
	OutputDir string `yaml:"output_dir"`
	// Folder under the root holding shared assets
	AssetsSubdir string `yaml:"assets_subdir"`
	// Ledger logs live here; defaults to .state under the root
	StateDir string `yaml:"state_dir"`
}

// DedupConfig holds media consolidation configuration
type DedupConfig struct {
	OutputDir   string `yaml:"output_dir"`
	MediaSubdir string `yaml:"media_subdir"`
	// Maximum perceptual Hamming distance at which two images are
	// considered the same logical picture
	DistanceThreshold int    `yaml:"distance_threshold"`
	MapFile           string `yaml:"map_file"`
}

// ExportConfig holds export stage configuration
type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`
	// Bundle filename prefix; bundles are named <prefix>.xml or
	// <prefix>-part-N.xml when chunked
	OutputPrefix string `yaml:"output_prefix"`
	// Maximum records per bundle, 0 writes a single bundle
	BundleSize int `yaml:"bundle_size"`
	// URL prefix substituted for canonical media in exported bodies
	MediaBase string `yaml:"media_base"`
	// Permalink prefix for rewritten intra-site post links
	PermalinkBase string `yaml:"permalink_base"`
	// Explicit content container selector; empty enables the
	// heuristic and fallback tiers
	ContentSelector string `yaml:"content_selector"`
	// Cleaning pass toggles; all passes run by default
	KeepPopupLinks     bool `yaml:"keep_popup_links"`
	KeepEmptyWrappers  bool `yaml:"keep_empty_wrappers"`
	KeepWhitespaceRuns bool `yaml:"keep_whitespace_runs"`
}

// DiscoverConfig holds permalink discovery configuration
type DiscoverConfig struct {
	StartPage      int      `yaml:"start_page"`
	PageDelay      Duration `yaml:"page_delay"`
	PermalinksFile string   `yaml:"permalinks_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			Author: "admin",
		},
		Fetch: FetchConfig{
			Workers:           4,
			RequestDelay:      Duration(500 * time.Millisecond),
			RequestsPerMinute: 0,
			Timeout:           Duration(30 * time.Second),
			MaxRetries:        3,
			RetryBaseDelay:    Duration(500 * time.Millisecond),
			Backoff:           "exponential",
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Archive: ArchiveConfig{
			OutputDir:    "./archive",
			AssetsSubdir: "assets",
			StateDir:     "",
		},
		Dedup: DedupConfig{
			OutputDir:         "./export",
			MediaSubdir:       "typepad_media",
			DistanceThreshold: 2,
			MapFile:           "./export/rename_map.json",
		},
		Export: ExportConfig{
			OutputDir:     "./export",
			OutputPrefix:  "import",
			BundleSize:    100,
			MediaBase:     "/wp-content/uploads/typepad_media/",
			PermalinkBase: "/",
		},
		Discover: DiscoverConfig{
			StartPage:      1,
			PageDelay:      Duration(time.Second),
			PermalinksFile: "./archive/permalinks.txt",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// StateDirectory returns the configured ledger directory, defaulting to
// .state under the archive root
func (c *ArchiveConfig) StateDirectory() string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return filepath.Join(c.OutputDir, ".state")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if siteURL := os.Getenv("TYPEPORTER_SITE_URL"); siteURL != "" {
		c.Site.URL = siteURL
	}
	if author := os.Getenv("TYPEPORTER_AUTHOR"); author != "" {
		c.Site.Author = author
	}
	if userAgent := os.Getenv("TYPEPORTER_USER_AGENT"); userAgent != "" {
		c.Fetch.UserAgent = userAgent
	}

	if workers := os.Getenv("TYPEPORTER_WORKERS"); workers != "" {
		var val int
		fmt.Sscanf(workers, "%d", &val)
		if val > 0 {
			c.Fetch.Workers = val
		}
	}
	if delay := os.Getenv("TYPEPORTER_REQUEST_DELAY"); delay != "" {
		if parsed, err := time.ParseDuration(delay); err == nil {
			c.Fetch.RequestDelay = Duration(parsed)
		}
	}
	if rpm := os.Getenv("TYPEPORTER_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.Fetch.RequestsPerMinute = val
		}
	}

	if outputDir := os.Getenv("TYPEPORTER_ARCHIVE_DIR"); outputDir != "" {
		c.Archive.OutputDir = outputDir
	}
	if exportDir := os.Getenv("TYPEPORTER_EXPORT_DIR"); exportDir != "" {
		c.Dedup.OutputDir = exportDir
		c.Export.OutputDir = exportDir
	}

	if logLevel := os.Getenv("TYPEPORTER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".typeporter.yaml",
		".typeporter.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "typeporter", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "typeporter", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".typeporter.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Site.URL != "" {
		parsed, err := url.Parse(c.Site.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("site url %q is not an absolute URL", c.Site.URL))
		}
	}

	if c.Fetch.Workers <= 0 {
		errs = append(errs, errors.New("fetch workers must be positive"))
	}
	if c.Fetch.Workers > 32 {
		errs = append(errs, errors.New("fetch workers should not exceed 32"))
	}
	if c.Fetch.RequestDelay < 0 {
		errs = append(errs, errors.New("request delay cannot be negative"))
	}
	if c.Fetch.Timeout.Std() <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Fetch.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	switch c.Fetch.Backoff {
	case "", "exponential", "linear", "constant":
	default:
		errs = append(errs, fmt.Errorf("unknown backoff strategy %q", c.Fetch.Backoff))
	}

	if c.Archive.OutputDir == "" {
		errs = append(errs, errors.New("archive output directory is required"))
	}
	if c.Archive.AssetsSubdir == "" {
		errs = append(errs, errors.New("shared assets subdirectory is required"))
	}

	if c.Dedup.DistanceThreshold < 0 || c.Dedup.DistanceThreshold > 64 {
		errs = append(errs, errors.New("distance threshold must be between 0 and 64"))
	}
	if c.Dedup.MapFile == "" {
		errs = append(errs, errors.New("rename map file is required"))
	}

	if c.Export.BundleSize < 0 {
		errs = append(errs, errors.New("bundle size cannot be negative"))
	}
	if c.Export.OutputPrefix == "" {
		errs = append(errs, errors.New("export output prefix is required"))
	}

	if c.Discover.StartPage < 1 {
		errs = append(errs, errors.New("discover start page must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyFlags merges command line flag values into the configuration
func (c *Config) ApplyFlags(flags map[string]interface{}) {
	if siteURL, ok := flags["site"].(string); ok && siteURL != "" {
		c.Site.URL = siteURL
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Fetch.Workers = workers
	}
	if delay, ok := flags["delay"].(time.Duration); ok && delay > 0 {
		c.Fetch.RequestDelay = Duration(delay)
	}
	if outputDir, ok := flags["archive-dir"].(string); ok && outputDir != "" {
		c.Archive.OutputDir = outputDir
	}
	if exportDir, ok := flags["export-dir"].(string); ok && exportDir != "" {
		c.Dedup.OutputDir = exportDir
		c.Export.OutputDir = exportDir
	}
	if threshold, ok := flags["threshold"].(int); ok && threshold >= 0 {
		c.Dedup.DistanceThreshold = threshold
	}
	if bundleSize, ok := flags["bundle-size"].(int); ok && bundleSize >= 0 {
		c.Export.BundleSize = bundleSize
	}
	if selector, ok := flags["selector"].(string); ok && selector != "" {
		c.Export.ContentSelector = selector
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".typeporter.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.ApplyFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
