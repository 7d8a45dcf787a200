// Package config provides configuration management for tmplview using
// Viper for flexible loading from files, environment variables, and
// command-line flags.
//
// Configuration is read from .tmplview.yml with TMPLVIEW_ prefixed
// environment variable overrides (TMPLVIEW_SERVER_PORT and so on). It
// covers the preview server, the engine command, debounce tuning, watch
// paths, context document resolution, and logging.
package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/johnmschoonover/tmplview/internal/logging"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Preview  PreviewConfig  `yaml:"preview" mapstructure:"preview"`
	Watch    WatchConfig    `yaml:"watch" mapstructure:"watch"`
	Contexts ContextsConfig `yaml:"contexts" mapstructure:"contexts"`
	Logging  logging.Config `yaml:"logging" mapstructure:"logging"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// EngineConfig selects the rendering engine process. An empty Command
// means "this binary's own engine subcommand", resolved at startup.
type EngineConfig struct {
	Command []string `yaml:"command" mapstructure:"command"`
}

type PreviewConfig struct {
	DebounceMs       int      `yaml:"debounce_ms" mapstructure:"debounce_ms"`
	SanitizeHTML     bool     `yaml:"sanitize_html" mapstructure:"sanitize_html"`
	MarkupExtensions []string `yaml:"markup_extensions" mapstructure:"markup_extensions"`
}

type WatchConfig struct {
	Paths      []string `yaml:"paths" mapstructure:"paths"`
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
	Ignore     []string `yaml:"ignore" mapstructure:"ignore"`
}

// ContextsConfig controls how a template document is paired with its
// context document: an explicit mapping file first, then the sidecar
// convention (<template>.json next to the template).
type ContextsConfig struct {
	MappingFile string `yaml:"mapping_file" mapstructure:"mapping_file"`
	Sidecar     bool   `yaml:"sidecar" mapstructure:"sidecar"`
}

// Load builds the configuration from viper's current state and applies
// defaults for anything unset.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.Server.Host == "" {
		config.Server.Host = "127.0.0.1"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 7331
	}
	if config.Preview.DebounceMs == 0 {
		config.Preview.DebounceMs = 200
	}
	if len(config.Preview.MarkupExtensions) == 0 {
		config.Preview.MarkupExtensions = []string{".html", ".htm"}
	}
	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{"."}
	}
	if len(config.Watch.Extensions) == 0 {
		config.Watch.Extensions = []string{".tmpl", ".gotmpl", ".html", ".htm", ".txt", ".json"}
	}
	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = []string{"node_modules", ".git", "vendor"}
	}
	if !viper.IsSet("contexts.sidecar") {
		config.Contexts.Sidecar = true
	}

	return &config, nil
}

// IsMarkup reports whether the rendered output of templatePath should be
// displayed as markup rather than plain text.
func (c *Config) IsMarkup(templatePath string) bool {
	ext := strings.ToLower(filepath.Ext(templatePath))
	for _, markup := range c.Preview.MarkupExtensions {
		if ext == strings.ToLower(markup) {
			return true
		}
	}
	return false
}
