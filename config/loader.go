package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// File is the on-disk configuration shape read by the CLI and server.
// Every field is optional; zero values fall back to the stage defaults.
type File struct {
	Crawl struct {
		BaseURL    string   `mapstructure:"base_url"`
		Query      string   `mapstructure:"query"`
		MaxPages   int      `mapstructure:"max_pages"`
		TimeoutMs  int      `mapstructure:"timeout_ms"`
		MaxRetries int      `mapstructure:"max_retries"`
		DelayMinMs int      `mapstructure:"delay_min_ms"`
		DelayMaxMs int      `mapstructure:"delay_max_ms"`
		UserAgents []string `mapstructure:"user_agents"`
		Output     string   `mapstructure:"output"`
		Format     string   `mapstructure:"format"`
	} `mapstructure:"crawl"`
	Clean struct {
		Input       string `mapstructure:"input"`
		Output      string `mapstructure:"output"`
		Language    string `mapstructure:"language"`
		KeepNumbers bool   `mapstructure:"keep_numbers"`
		Parallelism int    `mapstructure:"parallelism"`
	} `mapstructure:"clean"`
	Server struct {
		Listen  string `mapstructure:"listen"`
		DataDir string `mapstructure:"data_dir"`
	} `mapstructure:"server"`
}

// Load reads an optional YAML config file plus SCHOLAR_* environment
// overrides. An empty path loads environment-only configuration.
func Load(path string) (*File, error) {
	v := viper.New()
	v.SetEnvPrefix("SCHOLAR")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &f, nil
}

// ApplyCrawl overlays the file's crawl section onto cfg.
func (f *File) ApplyCrawl(cfg *CrawlConfig) {
	c := f.Crawl
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.Query != "" {
		cfg.Query = c.Query
	}
	if c.MaxPages > 0 {
		cfg.MaxPages = c.MaxPages
	}
	if c.TimeoutMs > 0 {
		cfg.Timeout = time.Duration(c.TimeoutMs) * time.Millisecond
	}
	if c.MaxRetries > 0 {
		cfg.MaxRetries = c.MaxRetries
	}
	if c.DelayMinMs > 0 {
		cfg.DelayMin = time.Duration(c.DelayMinMs) * time.Millisecond
	}
	if c.DelayMaxMs > 0 {
		cfg.DelayMax = time.Duration(c.DelayMaxMs) * time.Millisecond
	}
	if len(c.UserAgents) > 0 {
		cfg.UserAgents = c.UserAgents
	}
	if c.Output != "" {
		cfg.OutputFile = c.Output
	}
	if c.Format != "" {
		cfg.OutputFormat = c.Format
	}
}

// ApplyClean overlays the file's clean section onto cfg.
func (f *File) ApplyClean(cfg *CleanConfig) {
	c := f.Clean
	if c.Input != "" {
		cfg.InputFile = c.Input
	}
	if c.Output != "" {
		cfg.OutputFile = c.Output
	}
	if c.Language != "" {
		cfg.Language = c.Language
	}
	if c.KeepNumbers {
		cfg.DropNumbers = false
	}
	if c.Parallelism > 0 {
		cfg.Parallelism = c.Parallelism
	}
}

// ApplyServer overlays the file's server section onto cfg.
func (f *File) ApplyServer(cfg *ServerConfig) {
	if f.Server.Listen != "" {
		cfg.ListenAddr = f.Server.Listen
	}
	if f.Server.DataDir != "" {
		cfg.DataDir = f.Server.DataDir
	}
}
