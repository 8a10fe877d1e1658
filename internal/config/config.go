// Package config loads gitpress settings from a YAML file and GITPRESS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // settings.timezone must resolve in minimal containers

	"github.com/spf13/viper"

	"github.com/renderinc/gitpress/internal/content"
	"github.com/renderinc/gitpress/internal/errs"
	"github.com/renderinc/gitpress/internal/history"
)

// Config is the root of the configuration file
type Config struct {
	Git      Git      `mapstructure:"git"`
	Content  Content  `mapstructure:"content"`
	URLs     URLs     `mapstructure:"urls"`
	Settings Settings `mapstructure:"settings"`
	Server   Server   `mapstructure:"server"`
	DataDir  string   `mapstructure:"data_dir"`

	location *time.Location
	baseline history.Baseline
	scopes   []content.Scope
}

// Git describes the remote repository and how to reach it
type Git struct {
	Repository    string        `mapstructure:"repository"`
	Branch        string        `mapstructure:"branch"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	Proxy         string        `mapstructure:"proxy"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	WorkDir       string        `mapstructure:"work_dir"` // Empty clones into a temp dir
	MergeBaseline string        `mapstructure:"merge_baseline"`
}

// Content holds the globs selecting posts and pages
type Content struct {
	Posts string `mapstructure:"posts"`
	Pages string `mapstructure:"pages"`
}

// URLs holds the URL pattern of each document kind
type URLs struct {
	Post string `mapstructure:"post"`
	Page string `mapstructure:"page"`
}

// Settings are runtime knobs
type Settings struct {
	Timezone       string        `mapstructure:"timezone"`
	UpdateToken    string        `mapstructure:"update_token"`    // Empty leaves the update endpoint open
	UpdateInterval time.Duration `mapstructure:"update_interval"` // 0 disables periodic updates
	IndexSize      int           `mapstructure:"index_size"`
	Workers        int           `mapstructure:"workers"`
}

// Server is the HTTP listener
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("git.repository", "")
	v.SetDefault("git.branch", "main")
	v.SetDefault("git.user", "")
	v.SetDefault("git.password", "")
	v.SetDefault("git.proxy", "")
	v.SetDefault("git.fetch_timeout", "30s")
	v.SetDefault("git.work_dir", "")
	v.SetDefault("git.merge_baseline", "first-parent")

	v.SetDefault("content.posts", "posts/*.md")
	v.SetDefault("content.pages", "pages/*.md")

	v.SetDefault("urls.post", "/{year}/{month}/{day}/{slug}")
	v.SetDefault("urls.page", "/{slug}")

	v.SetDefault("settings.timezone", "UTC")
	v.SetDefault("settings.update_token", "")
	v.SetDefault("settings.update_interval", "0s")
	v.SetDefault("settings.index_size", 10)
	v.SetDefault("settings.workers", 4)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 6893)

	v.SetDefault("data_dir", "./data")
}

// Load reads the configuration. With an empty path it looks for
// gitpress.yaml in the working directory and tolerates its absence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("gitpress")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("GITPRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read config: %v", errs.ErrConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", errs.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every setting and caches the parsed forms
func (c *Config) Validate() error {
	if c.Git.Repository == "" {
		return fmt.Errorf("%w: git.repository is required", errs.ErrConfig)
	}
	if c.Git.Branch == "" {
		return fmt.Errorf("%w: git.branch is required", errs.ErrConfig)
	}
	if c.Git.FetchTimeout <= 0 {
		return fmt.Errorf("%w: git.fetch_timeout must be positive", errs.ErrConfig)
	}
	if c.Settings.UpdateInterval < 0 {
		return fmt.Errorf("%w: settings.update_interval must not be negative", errs.ErrConfig)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", errs.ErrConfig, c.Server.Port)
	}

	loc, err := time.LoadLocation(c.Settings.Timezone)
	if err != nil {
		return fmt.Errorf("%w: settings.timezone: %v", errs.ErrConfig, err)
	}

	baseline, err := history.ParseBaseline(c.Git.MergeBaseline)
	if err != nil {
		return err
	}

	postPattern, err := content.ParsePattern(c.URLs.Post)
	if err != nil {
		return fmt.Errorf("urls.post: %w", err)
	}
	pagePattern, err := content.ParsePattern(c.URLs.Page)
	if err != nil {
		return fmt.Errorf("urls.page: %w", err)
	}

	c.location = loc
	c.baseline = baseline
	c.scopes = []content.Scope{
		{Kind: content.KindPost, Glob: c.Content.Posts, Pattern: postPattern},
		{Kind: content.KindPage, Glob: c.Content.Pages, Pattern: pagePattern},
	}
	return nil
}

// Location is the time zone documents are presented in
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Baseline is the merge baseline used by the history walker
func (c *Config) Baseline() history.Baseline {
	return c.baseline
}

// Scopes returns the post and page scopes
func (c *Config) Scopes() []content.Scope {
	return c.scopes
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
