// Package config loads the digitarc configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/digitarc/pkg/applog"
	"github.com/vanderheijden86/digitarc/pkg/tree"
)

// Environment variables that override file settings.
const (
	EnvConfig  = "DIGITARC_CONFIG"
	EnvAPIURL  = "DIGITARC_API_URL"
	EnvToken   = "DIGITARC_TOKEN"
	MaxFavSlot = 9
)

// Config is the top-level configuration (config.yaml).
type Config struct {
	API      APIConfig  `yaml:"api"`
	Tree     TreeConfig `yaml:"tree"`
	Log      LogConfig  `yaml:"log"`
	Projects []Project  `yaml:"projects,omitempty"`
}

// APIConfig locates the digitization service.
type APIConfig struct {
	// BaseURL includes the API prefix, e.g. http://localhost:8000/api/v1.
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// TreeConfig tunes the collection tree.
type TreeConfig struct {
	// Strategy is "lazy" (default) or "eager".
	Strategy         string `yaml:"strategy,omitempty"`
	IndentUnit       string `yaml:"indent_unit,omitempty"`
	MaxDepth         int    `yaml:"max_depth,omitempty"`
	FetchConcurrency int    `yaml:"fetch_concurrency,omitempty"`
}

// LogConfig selects the log file and level. An empty file disables logging.
type LogConfig struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level,omitempty"`
}

// Project is a remembered project, optionally pinned to a number key.
type Project struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
	// FavoriteSlot binds the project to key 1-9; 0 means unpinned.
	FavoriteSlot int `yaml:"favorite,omitempty"`
}

// DefaultConfig returns the settings used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:8089/api/v1",
			Timeout: 15 * time.Second,
		},
		Tree: TreeConfig{
			Strategy:         "lazy",
			IndentUnit:       "  ",
			MaxDepth:         tree.DefaultMaxDepth,
			FetchConcurrency: tree.DefaultConcurrency,
		},
		Log: LogConfig{
			File:  defaultLogFile(),
			Level: "info",
		},
	}
}

// ExampleConfig is written by "digitarc config init".
func ExampleConfig() Config {
	cfg := DefaultConfig()
	cfg.Projects = []Project{
		{Name: "City archive", ID: "00000000-0000-0000-0000-000000000001", FavoriteSlot: 1},
	}
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url: %q is not an http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return errors.New("api.timeout must not be negative")
	}
	if _, err := tree.ParseStrategy(c.Tree.Strategy); err != nil {
		return fmt.Errorf("tree.strategy: %w", err)
	}
	if c.Tree.MaxDepth <= 0 {
		return fmt.Errorf("tree.max_depth must be positive, got %d", c.Tree.MaxDepth)
	}
	if c.Tree.FetchConcurrency <= 0 {
		return fmt.Errorf("tree.fetch_concurrency must be positive, got %d", c.Tree.FetchConcurrency)
	}
	if _, err := applog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	slots := make(map[int]string)
	for i, p := range c.Projects {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("projects[%d]: id is required", i)
		}
		if p.FavoriteSlot < 0 || p.FavoriteSlot > MaxFavSlot {
			return fmt.Errorf("projects[%d]: favorite must be 0-%d, got %d", i, MaxFavSlot, p.FavoriteSlot)
		}
		if p.FavoriteSlot == 0 {
			continue
		}
		if prev, dup := slots[p.FavoriteSlot]; dup {
			return fmt.Errorf("projects[%d]: favorite %d already used by %s", i, p.FavoriteSlot, prev)
		}
		slots[p.FavoriteSlot] = p.ID
	}
	return nil
}

// Strategy returns the parsed tree strategy. Call after Validate.
func (c *Config) Strategy() tree.Strategy {
	s, _ := tree.ParseStrategy(c.Tree.Strategy)
	return s
}

// Favorites returns the pinned projects ordered by slot.
func (c *Config) Favorites() []Project {
	var out []Project
	for _, p := range c.Projects {
		if p.FavoriteSlot > 0 {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FavoriteSlot < out[j].FavoriteSlot })
	return out
}

// DisplayName returns the project name, falling back to its id.
func (p Project) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// Load reads path, fills unset fields from DefaultConfig, applies the
// environment overrides and validates the result. A missing file is not an
// error: the defaults are used.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg.fillDefaults()
	cfg.applyEnv()
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file may hold an API token.
	return os.WriteFile(path, data, 0o600)
}

// fillDefaults restores defaults for keys the file set to zero values.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = def.API.Timeout
	}
	if c.Tree.Strategy == "" {
		c.Tree.Strategy = def.Tree.Strategy
	}
	if c.Tree.IndentUnit == "" {
		c.Tree.IndentUnit = def.Tree.IndentUnit
	}
	if c.Tree.MaxDepth == 0 {
		c.Tree.MaxDepth = def.Tree.MaxDepth
	}
	if c.Tree.FetchConcurrency == 0 {
		c.Tree.FetchConcurrency = def.Tree.FetchConcurrency
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.API.Token = v
	}
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "digitarc", "digitarc.log")
}
