package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wberrors "github.com/conneroisu/whiteboard/internal/errors"
	"github.com/conneroisu/whiteboard/internal/logging"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:  "defaults",
			setup: func(*viper.Viper) {},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "index.html", cfg.App.Page)
				assert.Equal(t, "#app", cfg.App.RootSelector)
				assert.Equal(t, ".module", cfg.App.ModuleSelector)
				assert.Equal(t, "module", cfg.App.ModuleAttribute)
				assert.Equal(t, "/", cfg.Router.Root)
				assert.Equal(t, "localhost:8080", cfg.Address())
				assert.True(t, cfg.Watch.Enabled)
				assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
				assert.Equal(t, []string{"index.html", "templates"}, cfg.Watch.Paths)
				assert.Empty(t, cfg.Routes)
			},
		},
		{
			name: "overrides",
			setup: func(v *viper.Viper) {
				v.Set("app.root_selector", "main")
				v.Set("router.root", "board")
				v.Set("router.silent", true)
				v.Set("server.port", 3000)
				v.Set("server.allowed_origins", "example.com,localhost:*")
				v.Set("watch.debounce", "250ms")
				v.Set("log.level", "debug")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "main", cfg.App.RootSelector)
				assert.Equal(t, "board", cfg.Router.Root)
				assert.True(t, cfg.Router.Silent)
				assert.Equal(t, 3000, cfg.Server.Port)
				assert.Equal(t, []string{"example.com", "localhost:*"}, cfg.Server.AllowedOrigins)
				assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
				assert.Equal(t, logging.LevelDebug, cfg.Log.LoggerConfig().Level)
			},
		},
		{
			name: "routes",
			setup: func(v *viper.Viper) {
				v.Set("routes", []map[string]any{
					{"pattern": "^$", "template": "home.html"},
					{"pattern": "notes/*", "match": "glob", "template": "notes.html", "title": "Notes"},
				})
			},
			check: func(t *testing.T, cfg *Config) {
				require.Len(t, cfg.Routes, 2)
				assert.Equal(t, "glob", cfg.Routes[1].Match)
				assert.Equal(t, "Notes", cfg.Routes[1].Title)

				matchers, err := cfg.Matchers()
				require.NoError(t, err)
				assert.True(t, matchers[0].Match(""))
				assert.True(t, matchers[1].Match("notes/1"))
				assert.False(t, matchers[1].Match("notes/1/edit"))
			},
		},
		{
			name: "invalid port",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 70000)
			},
			expectError: true,
		},
		{
			name: "undecodable port",
			setup: func(v *viper.Viper) {
				v.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "invalid module selector",
			setup: func(v *viper.Viper) {
				v.Set("app.module_selector", "div[")
			},
			expectError: true,
		},
		{
			name: "invalid route kind",
			setup: func(v *viper.Viper) {
				v.Set("routes", []map[string]any{{"pattern": "x", "match": "fuzzy", "template": "x.html"}})
			},
			expectError: true,
		},
		{
			name: "route template escapes project",
			setup: func(v *viper.Viper) {
				v.Set("routes", []map[string]any{{"pattern": "x", "template": "../../etc/passwd"}})
			},
			expectError: true,
		},
		{
			name: "unknown log format",
			setup: func(v *viper.Viper) {
				v.Set("log.format", "xml")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)

			if tt.expectError {
				assert.Error(t, err)
				assert.True(t, wberrors.IsType(err, wberrors.ErrorTypeConfig))
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_GlobalViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("server.host", "0.0.0.0")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("WHITEBOARD_SERVER_PORT", "9090")
	t.Setenv("WHITEBOARD_APP_ROOT_SELECTOR", "#board")

	v := viper.New()
	BindEnv(v)

	cfg, err := LoadFrom(v)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "#board", cfg.App.RootSelector)
}

func TestWriteThenReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg := Default()
	cfg.Routes = []RouteConfig{{Pattern: "^about$", Template: "about.html"}}
	cfg.Server.Port = 4321
	require.NoError(t, Write(path, cfg))

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadInConfig())

	loaded, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 4321, loaded.Server.Port)
	assert.Equal(t, cfg.Routes, loaded.Routes)
	assert.Equal(t, cfg.Watch.Debounce, loaded.Watch.Debounce)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("WHITEBOARD_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("WHITEBOARD_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("WHITEBOARD_TEST_DOTENV"))
}

func TestTemplatePath(t *testing.T) {
	cfg := Default()

	assert.Equal(t, filepath.Join("templates", "home.html"), cfg.TemplatePath("home.html"))
	assert.Equal(t, "/abs/home.html", cfg.TemplatePath("/abs/home.html"))
}

func TestValidatePath(t *testing.T) {
	tests := map[string]bool{
		"":                false,
		"index.html":      true,
		"./pages/a.html":  true,
		"..":              false,
		"../secret.html":  false,
		"a/../../b.html":  false,
		"a/../b.html":     true,
		"..hidden/x.html": true,
	}

	for path, ok := range tests {
		t.Run(path, func(t *testing.T) {
			err := validatePath(path)
			if ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
