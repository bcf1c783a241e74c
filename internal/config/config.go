// Package config provides configuration management for whiteboard using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable overrides
// with the WHITEBOARD_ prefix, .env files, and validation. It describes the
// page being served, how modules are marked in it, the router root, the routes
// that render templates, the dev server, file watching, and logging.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/whiteboard/internal/dom"
	wberrors "github.com/conneroisu/whiteboard/internal/errors"
	"github.com/conneroisu/whiteboard/internal/history"
	"github.com/conneroisu/whiteboard/internal/logging"
)

// FileName is the configuration file looked up in the working directory.
const FileName = ".whiteboard.yml"

// EnvPrefix prefixes environment overrides: WHITEBOARD_SERVER_PORT sets
// server.port.
const EnvPrefix = "WHITEBOARD"

type Config struct {
	App    AppConfig     `yaml:"app" mapstructure:"app"`
	Router RouterConfig  `yaml:"router" mapstructure:"router"`
	Routes []RouteConfig `yaml:"routes" mapstructure:"routes"`
	Server ServerConfig  `yaml:"server" mapstructure:"server"`
	Watch  WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Log    LogConfig     `yaml:"log" mapstructure:"log"`
}

type AppConfig struct {
	Page            string `yaml:"page" mapstructure:"page"`
	Templates       string `yaml:"templates" mapstructure:"templates"`
	RootSelector    string `yaml:"root_selector" mapstructure:"root_selector"`
	ModuleSelector  string `yaml:"module_selector" mapstructure:"module_selector"`
	ModuleAttribute string `yaml:"module_attribute" mapstructure:"module_attribute"`
}

type RouterConfig struct {
	Root   string `yaml:"root" mapstructure:"root"`
	Silent bool   `yaml:"silent" mapstructure:"silent"`
}

// RouteConfig renders Template into the root element when Pattern matches
// the fragment. Match selects how Pattern is read: regex, exact or glob.
type RouteConfig struct {
	Pattern  string `yaml:"pattern" json:"pattern" mapstructure:"pattern"`
	Match    string `yaml:"match,omitempty" json:"match,omitempty" mapstructure:"match"`
	Template string `yaml:"template" json:"template" mapstructure:"template"`
	Title    string `yaml:"title,omitempty" json:"title,omitempty" mapstructure:"title"`
}

type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Paths    []string      `yaml:"paths" mapstructure:"paths"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Page:            "index.html",
			Templates:       "templates",
			RootSelector:    "#app",
			ModuleSelector:  ".module",
			ModuleAttribute: "module",
		},
		Router: RouterConfig{Root: "/"},
		Routes: []RouteConfig{},
		Server: ServerConfig{
			Host:           "localhost",
			Port:           8080,
			AllowedOrigins: []string{},
		},
		Watch: WatchConfig{
			Enabled:  true,
			Paths:    []string{},
			Debounce: 100 * time.Millisecond,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// SetDefaults registers the defaults with v so that environment variables and
// flags can override keys that the file does not set.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("app.page", d.App.Page)
	v.SetDefault("app.templates", d.App.Templates)
	v.SetDefault("app.root_selector", d.App.RootSelector)
	v.SetDefault("app.module_selector", d.App.ModuleSelector)
	v.SetDefault("app.module_attribute", d.App.ModuleAttribute)
	v.SetDefault("router.root", d.Router.Root)
	v.SetDefault("router.silent", d.Router.Silent)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// BindEnv makes v read WHITEBOARD_ prefixed environment variables, with
// dots in keys written as underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration held by the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration held by v, fills in defaults and
// validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	config := Default()
	if err := v.Unmarshal(config); err != nil {
		return nil, wberrors.Wrap(err, wberrors.ErrorTypeConfig, wberrors.CodeInvalidConfig, "decode configuration")
	}

	// Slices set from the environment arrive as one comma separated string.
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("watch.paths") && len(config.Watch.Paths) == 0 {
		config.Watch.Paths = v.GetStringSlice("watch.paths")
	}

	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{config.App.Page, config.App.Templates}
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadDotEnv loads environment variables from path. Missing files are ignored.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Write serializes cfg as YAML to path.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return wberrors.Wrap(err, wberrors.ErrorTypeIO, wberrors.CodeInvalidConfig, "write configuration")
	}
	return nil
}

// Matchers compiles the configured routes in declaration order.
func (c *Config) Matchers() ([]history.Matcher, error) {
	out := make([]history.Matcher, 0, len(c.Routes))
	for i, r := range c.Routes {
		m, err := history.ParseMatcher(r.Match, r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// TemplatePath resolves a route or partial template name against the
// templates directory.
func (c *Config) TemplatePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.App.Templates, name)
}

// Address returns host:port for the dev server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LoggerConfig converts the log section for logging.NewLogger. An unknown
// level falls back to info; Validate reports it.
func (l LogConfig) LoggerConfig() *logging.LoggerConfig {
	level, _ := logging.ParseLevel(l.Level)
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = strings.ToLower(l.Format)
	return lc
}

// Validate checks configuration values for correctness.
func Validate(config *Config) error {
	var errs []error

	if err := validateApp(&config.App); err != nil {
		errs = append(errs, fmt.Errorf("app config: %w", err))
	}
	if _, err := config.Matchers(); err != nil {
		errs = append(errs, err)
	}
	for i, r := range config.Routes {
		if err := validatePath(r.Template); err != nil {
			errs = append(errs, fmt.Errorf("routes[%d] template: %w", i, err))
		}
	}
	if err := validateServer(&config.Server); err != nil {
		errs = append(errs, fmt.Errorf("server config: %w", err))
	}
	if config.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch config: negative debounce %s", config.Watch.Debounce))
	}
	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log config: %w", err))
	}
	if f := strings.ToLower(config.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log config: unknown format %q", config.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return wberrors.Wrap(errors.Join(errs...), wberrors.ErrorTypeConfig, wberrors.CodeInvalidConfig, "invalid configuration")
}

func validateApp(app *AppConfig) error {
	if err := validatePath(app.Page); err != nil {
		return fmt.Errorf("page: %w", err)
	}
	if app.ModuleAttribute == "" {
		return fmt.Errorf("module_attribute is empty")
	}
	for name, sel := range map[string]string{
		"root_selector":   app.RootSelector,
		"module_selector": app.ModuleSelector,
	} {
		if _, err := dom.Compile(sel); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func validateServer(config *ServerConfig) error {
	// 0 lets the system pick a port.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

// validatePath rejects empty paths and paths that climb out of the project.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	return nil
}
