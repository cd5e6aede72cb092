// Package config loads and layers trackerd's configuration: hardcoded
// defaults, a user-level YAML file, and CLI flag overrides (§6, §SPEC_FULL A).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete trackerd configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Paths       PathsConfig       `yaml:"paths" json:"paths"`
	Ontology    OntologyConfig    `yaml:"ontology" json:"ontology"`
	Databases   DatabasesConfig   `yaml:"databases" json:"databases"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
	LiveSearch  LiveSearchConfig  `yaml:"live_search" json:"live_search"`
}

// PathsConfig configures which filesystem roots the crawler walks and
// which paths it skips (spec §4.3 crawl filtering, on top of the built-in
// ignore sets).
type PathsConfig struct {
	CrawlRoots  []string `yaml:"crawl_roots" json:"crawl_roots"`
	ExcludeDirs []string `yaml:"exclude_dirs" json:"exclude_dirs"`
	IncludeDirs []string `yaml:"include_dirs" json:"include_dirs"`
	IgnoreGlobs []string `yaml:"ignore_globs" json:"ignore_globs"`
}

// OntologyConfig configures where ServiceType/Field description files live.
type OntologyConfig struct {
	DescriptionDir string `yaml:"description_dir" json:"description_dir"`
}

// DBTuning is a per-database tuning profile (spec §6 table).
type DBTuning struct {
	CacheSizePages int  `yaml:"cache_size_pages" json:"cache_size_pages"`
	PageSizeBytes  int  `yaml:"page_size_bytes" json:"page_size_bytes"`
	AddFunctions   bool `yaml:"add_functions" json:"add_functions"`
}

// DatabasesConfig configures the canonical database set (§6 "Database
// file layout" and tuning table).
type DatabasesConfig struct {
	DataDir       string   `yaml:"data_dir" json:"data_dir"`
	Common        DBTuning `yaml:"common" json:"common"`
	Cache         DBTuning `yaml:"cache" json:"cache"`
	FileMeta      DBTuning `yaml:"file_meta" json:"file_meta"`
	FileContents  DBTuning `yaml:"file_contents" json:"file_contents"`
	EmailMeta     DBTuning `yaml:"email_meta" json:"email_meta"`
	EmailContents DBTuning `yaml:"email_contents" json:"email_contents"`
	Xesam         DBTuning `yaml:"xesam" json:"xesam"`
	LowMemory     bool     `yaml:"low_memory" json:"low_memory"`
}

// PerformanceConfig configures crawl/index throughput tuning.
type PerformanceConfig struct {
	// Throttle in [0,99]; sleeps throttle*100us between text-pipeline chunks.
	Throttle     int `yaml:"throttle" json:"throttle"`
	IndexWorkers int `yaml:"index_workers" json:"index_workers"`
	BatchSize    int `yaml:"batch_size" json:"batch_size"`
	TickInterval int `yaml:"tick_interval_ms" json:"tick_interval_ms"`
	InitialSleep int `yaml:"initial_sleep_ms" json:"initial_sleep_ms"`

	// Tokenisation bounds (§4.4 "Tokenisation parameters").
	MaxWordLength   int `yaml:"max_word_length" json:"max_word_length"`
	MinWordLength   int `yaml:"min_word_length" json:"min_word_length"`
	MaxWordsToIndex int `yaml:"max_words_to_index" json:"max_words_to_index"`
}

// ServerConfig configures the bus adapter (§4.7).
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// LiveSearchConfig configures the live-search matcher's debounce cycle (§4.6).
type LiveSearchConfig struct {
	DebounceMS int `yaml:"debounce_ms" json:"debounce_ms"`
}

// NewConfig returns a Config populated with trackerd's defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			CrawlRoots:  []string{defaultHomeDir()},
			ExcludeDirs: nil,
			IncludeDirs: nil,
			IgnoreGlobs: nil,
		},
		Ontology: OntologyConfig{
			DescriptionDir: defaultOntologyDir(),
		},
		Databases: DatabasesConfig{
			DataDir:       defaultDataDir(),
			Common:        DBTuning{CacheSizePages: 32, AddFunctions: false},
			Cache:         DBTuning{CacheSizePages: 128, AddFunctions: false},
			FileMeta:      DBTuning{CacheSizePages: 512, AddFunctions: true},
			FileContents:  DBTuning{CacheSizePages: 1024, AddFunctions: true},
			EmailMeta:     DBTuning{CacheSizePages: 512, AddFunctions: true},
			EmailContents: DBTuning{CacheSizePages: 512, AddFunctions: true},
			Xesam:         DBTuning{CacheSizePages: 64, AddFunctions: false},
			LowMemory:     false,
		},
		Performance: PerformanceConfig{
			Throttle:        0,
			IndexWorkers:    runtime.NumCPU(),
			BatchSize:       5000,
			TickInterval:    2000,
			InitialSleep:    0,
			MaxWordLength:   30,
			MinWordLength:   3,
			MaxWordsToIndex: 10000,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		LiveSearch: LiveSearchConfig{
			DebounceMS: 2000,
		},
	}
}

func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".trackerd")
	}
	return filepath.Join(home, ".local", "share", "trackerd")
}

func defaultOntologyDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "trackerd", "ontology")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "trackerd", "ontology")
	}
	return filepath.Join(home, ".local", "share", "trackerd", "ontology")
}

// GetUserConfigPath returns the XDG-compliant path to the user config file.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "trackerd", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "trackerd", "config.yaml")
	}
	return filepath.Join(home, ".config", "trackerd", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load builds the effective configuration: defaults, then the user config
// file (if present), then environment variable overrides. Per spec §9 Open
// Question 1, a config file that is deleted between loads is treated as
// "retain last loaded value" by the caller — Load itself simply returns
// defaults when the file is absent, it never errors on absence.
func Load() (*Config, error) {
	cfg := NewConfig()

	path := GetUserConfigPath()
	if fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields of other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if len(other.Paths.CrawlRoots) > 0 {
		c.Paths.CrawlRoots = other.Paths.CrawlRoots
	}
	if len(other.Paths.ExcludeDirs) > 0 {
		c.Paths.ExcludeDirs = append(c.Paths.ExcludeDirs, other.Paths.ExcludeDirs...)
	}
	if len(other.Paths.IncludeDirs) > 0 {
		c.Paths.IncludeDirs = append(c.Paths.IncludeDirs, other.Paths.IncludeDirs...)
	}
	if len(other.Paths.IgnoreGlobs) > 0 {
		c.Paths.IgnoreGlobs = append(c.Paths.IgnoreGlobs, other.Paths.IgnoreGlobs...)
	}
	if other.Ontology.DescriptionDir != "" {
		c.Ontology.DescriptionDir = other.Ontology.DescriptionDir
	}
	if other.Databases.DataDir != "" {
		c.Databases.DataDir = other.Databases.DataDir
	}
	mergeTuning(&c.Databases.Common, other.Databases.Common)
	mergeTuning(&c.Databases.Cache, other.Databases.Cache)
	mergeTuning(&c.Databases.FileMeta, other.Databases.FileMeta)
	mergeTuning(&c.Databases.FileContents, other.Databases.FileContents)
	mergeTuning(&c.Databases.EmailMeta, other.Databases.EmailMeta)
	mergeTuning(&c.Databases.EmailContents, other.Databases.EmailContents)
	mergeTuning(&c.Databases.Xesam, other.Databases.Xesam)
	if other.Databases.LowMemory {
		c.Databases.LowMemory = true
	}
	if other.Performance.Throttle != 0 {
		c.Performance.Throttle = other.Performance.Throttle
	}
	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
	if other.Performance.BatchSize != 0 {
		c.Performance.BatchSize = other.Performance.BatchSize
	}
	if other.Performance.TickInterval != 0 {
		c.Performance.TickInterval = other.Performance.TickInterval
	}
	if other.Performance.InitialSleep != 0 {
		c.Performance.InitialSleep = other.Performance.InitialSleep
	}
	if other.Performance.MaxWordLength != 0 {
		c.Performance.MaxWordLength = other.Performance.MaxWordLength
	}
	if other.Performance.MinWordLength != 0 {
		c.Performance.MinWordLength = other.Performance.MinWordLength
	}
	if other.Performance.MaxWordsToIndex != 0 {
		c.Performance.MaxWordsToIndex = other.Performance.MaxWordsToIndex
	}
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.LiveSearch.DebounceMS != 0 {
		c.LiveSearch.DebounceMS = other.LiveSearch.DebounceMS
	}
}

func mergeTuning(dst *DBTuning, src DBTuning) {
	if src.CacheSizePages != 0 {
		dst.CacheSizePages = src.CacheSizePages
	}
	if src.PageSizeBytes != 0 {
		dst.PageSizeBytes = src.PageSizeBytes
	}
	if src.AddFunctions {
		dst.AddFunctions = true
	}
}

// applyEnvOverrides applies TRACKERD_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TRACKERD_THROTTLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Performance.Throttle = n
		}
	}
	if v := os.Getenv("TRACKERD_CRAWL_DIR"); v != "" {
		c.Paths.CrawlRoots = append(c.Paths.CrawlRoots, strings.Split(v, string(os.PathListSeparator))...)
	}
	if v := os.Getenv("TRACKERD_EXCLUDE_DIR"); v != "" {
		c.Paths.ExcludeDirs = append(c.Paths.ExcludeDirs, strings.Split(v, string(os.PathListSeparator))...)
	}
	if v := os.Getenv("TRACKERD_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("TRACKERD_DATA_DIR"); v != "" {
		c.Databases.DataDir = v
	}
	if v := os.Getenv("TRACKERD_LOW_MEMORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Databases.LowMemory = b
		}
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Performance.Throttle < 0 || c.Performance.Throttle > 99 {
		return fmt.Errorf("performance.throttle must be in [0,99], got %d", c.Performance.Throttle)
	}
	if c.Performance.BatchSize <= 0 || c.Performance.BatchSize > 5000 {
		return fmt.Errorf("performance.batch_size must be in (0,5000], got %d", c.Performance.BatchSize)
	}
	if c.Performance.IndexWorkers <= 0 {
		return fmt.Errorf("performance.index_workers must be positive")
	}
	if len(c.Paths.CrawlRoots) == 0 {
		return fmt.Errorf("paths.crawl_roots must not be empty")
	}
	if c.LiveSearch.DebounceMS <= 0 {
		return fmt.Errorf("live_search.debounce_ms must be positive")
	}
	return nil
}

// EffectiveCacheSizePages halves the configured cache size when LowMemory
// is set (spec §6 "Under a low-memory flag, cache sizes halve").
func (d DBTuning) EffectiveCacheSizePages(lowMemory bool) int {
	if lowMemory {
		return d.CacheSizePages / 2
	}
	return d.CacheSizePages
}
