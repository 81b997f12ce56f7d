package phpintel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when no config file exists in dir or its parents.
var ErrConfigNotFound = errors.New("no .phpintel.yaml found")

// Config represents the .phpintel.yaml configuration file.
type Config struct {
	// Include lists the roots to index, relative to the config directory.
	Include []string `yaml:"include,omitempty"`

	// Exclude lists glob patterns (slash separated, ** allowed) of paths to skip.
	Exclude []string `yaml:"exclude,omitempty"`

	// Extensions of files treated as PHP.
	Extensions []string `yaml:"extensions,omitempty"`

	// Workers bounds the number of files analyzed concurrently.
	Workers int `yaml:"workers,omitempty"`

	Cache CacheConfig `yaml:"cache,omitempty"`

	// Rules enables optional lint rules ("duplicate-definition", "unused-import")
	// on top of the syntax-error and this-usage checks that always run.
	Rules []string `yaml:"rules,omitempty"`

	// LogLevel is a zap level name ("debug", "info", ...).
	LogLevel string `yaml:"log_level,omitempty"`

	// Watch enables file system watching in the language server.
	Watch bool `yaml:"watch,omitempty"`

	// Dir is the directory the config was loaded from. Not read from YAML.
	Dir string `yaml:"-"`

	excludes []glob.Glob
}

// CacheConfig selects the analysis cache backend.
type CacheConfig struct {
	// Driver is "sqlite", "memory" or "none".
	Driver string `yaml:"driver,omitempty"`

	// Path of the sqlite database, relative to the config directory.
	Path string `yaml:"path,omitempty"`
}

// Cache drivers.
const (
	CacheDriverSQLite = "sqlite"
	CacheDriverMemory = "memory"
	CacheDriverNone   = "none"
)

// DefaultConfigNames are the filenames we search for.
var DefaultConfigNames = []string{".phpintel.yaml", ".phpintel.yml", "phpintel.yaml", "phpintel.yml"}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig(dir string) *Config {
	cfg := &Config{Dir: dir}
	cfg.applyDefaults()

	return cfg
}

// LoadConfig finds and loads the nearest .phpintel.yaml walking up from dir.
func LoadConfig(dir string) (*Config, error) {
	path, err := FindConfig(dir)
	if err != nil {
		return nil, err
	}

	return LoadConfigFile(path)
}

// LoadConfigOrDefault is LoadConfig falling back to DefaultConfig(dir) when no file exists.
func LoadConfigOrDefault(dir string) (*Config, error) {
	cfg, err := LoadConfig(dir)
	if errors.Is(err, ErrConfigNotFound) {
		absDir, absErr := filepath.Abs(dir)
		if absErr != nil {
			return nil, absErr
		}

		return DefaultConfig(absDir), nil
	}

	return cfg, err
}

// FindConfig searches for a config file starting from dir and walking up.
func FindConfig(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for dir := absDir; ; {
		for _, name := range DefaultConfigNames {
			path := filepath.Join(dir, name)

			_, err := os.Stat(path)
			if err == nil {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}

		dir = parent
	}
}

// LoadConfigFile loads a config from a specific path.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	cfg.Dir = filepath.Dir(absPath)

	err = cfg.compile()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) compile() error {
	c.excludes = c.excludes[:0]

	for _, pattern := range c.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}

		c.excludes = append(c.excludes, g)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if len(c.Include) == 0 {
		c.Include = []string{"."}
	}

	if len(c.Extensions) == 0 {
		c.Extensions = []string{".php"}
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheDriverMemory
	}

	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(".phpintel", "cache.db")
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Roots returns the absolute include roots.
func (c *Config) Roots() []string {
	roots := make([]string, 0, len(c.Include))

	for _, inc := range c.Include {
		if filepath.IsAbs(inc) {
			roots = append(roots, filepath.Clean(inc))
		} else {
			roots = append(roots, filepath.Join(c.Dir, inc))
		}
	}

	return roots
}

// CachePath returns the absolute path of the sqlite cache.
func (c *Config) CachePath() string {
	if filepath.IsAbs(c.Cache.Path) {
		return c.Cache.Path
	}

	return filepath.Join(c.Dir, c.Cache.Path)
}

// Excluded reports whether a path (relative to the config directory) matches an exclude pattern.
func (c *Config) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)

	for _, g := range c.excludes {
		if g.Match(rel) {
			return true
		}
	}

	return false
}

// IsSource reports whether the path has one of the configured PHP extensions.
func (c *Config) IsSource(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	for _, e := range c.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}

	return false
}
