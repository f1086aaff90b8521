package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadIsolated(t *testing.T, extra func(*Options)) (*Config, error) {
	t.Helper()
	dir := t.TempDir()
	opts := Options{ConfigPath: filepath.Join(dir, "missing.toml"), DotEnvDir: dir}
	if extra != nil {
		extra(&opts)
	}
	return Load(opts)
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(&cfg))
	assert.Equal(t, DefaultListen, cfg.Viewer.Listen)
	assert.Equal(t, 500*time.Millisecond, cfg.Selection.PollInterval.Duration)
	assert.Equal(t, 60*time.Second, cfg.Latex.Timeout.Duration)
	assert.Equal(t, 500, cfg.Latex.MaxErrorChars)
	assert.True(t, strings.HasSuffix(cfg.StateFile, "state.json"))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadIsolated(t, nil)
	require.NoError(t, err)
	assert.Equal(t, ViewerModeProcess, cfg.Viewer.Mode)
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
root_dir = "/srv/docs"
verbose = true

[viewer]
listen = "127.0.0.1:9000"
mode = "embedded"

[selection]
poll_interval = "250ms"

[latex]
compiler = "xelatex"
timeout = "2m"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(Options{ConfigPath: path, DotEnvDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "/srv/docs", cfg.RootDir)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "127.0.0.1:9000", cfg.Viewer.Listen)
	assert.Equal(t, ViewerModeEmbedded, cfg.Viewer.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Selection.PollInterval.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Latex.Timeout.Duration)
	assert.Equal(t, "xelatex", cfg.Latex.Compiler)
	assert.Equal(t, 60*time.Second, cfg.Selection.WaitTimeout.Duration, "unset keys keep defaults")
}

func TestMalformedTOMLIsConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[viewer\nlisten="), 0o644))

	_, err := Load(Options{ConfigPath: path, DotEnvDir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIG_INVALID")
}

func TestEnvOverridesFileAndFlagsOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[viewer]\nlisten = \"127.0.0.1:9000\"\n"), 0o644))
	t.Setenv("CTXVIEW_LISTEN", "127.0.0.1:9100")
	t.Setenv("CTXVIEW_POLL_INTERVAL", "1s")

	cfg, err := Load(Options{ConfigPath: path, DotEnvDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", cfg.Viewer.Listen)
	assert.Equal(t, time.Second, cfg.Selection.PollInterval.Duration)

	listen := "127.0.0.1:9200"
	cfg, err = Load(Options{ConfigPath: path, DotEnvDir: dir, Overrides: &Overrides{Listen: &listen}})
	require.NoError(t, err)
	assert.Equal(t, listen, cfg.Viewer.Listen)
}

func TestBadEnvDurationIsRejected(t *testing.T) {
	t.Setenv("CTXVIEW_LATEX_TIMEOUT", "soon")
	_, err := loadIsolated(t, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CTXVIEW_LATEX_TIMEOUT")
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	const key = "CTXVIEW_LATEX_COMPILER"
	prev, had := os.LookupEnv(key)
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=lualatex\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte(key+"=xelatex\n"), 0o644))

	cfg, err := Load(Options{ConfigPath: filepath.Join(dir, "none.toml"), DotEnvDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "xelatex", cfg.Latex.Compiler, ".env.local wins over .env")

	require.NoError(t, os.Setenv(key, "pdflatex"))
	cfg, err = Load(Options{ConfigPath: filepath.Join(dir, "none.toml"), DotEnvDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "pdflatex", cfg.Latex.Compiler, "real environment wins over dotenv")
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"listen":  func(c *Config) { c.Viewer.Listen = "nope" },
		"mode":    func(c *Config) { c.Viewer.Mode = "thread" },
		"poll":    func(c *Config) { c.Selection.PollInterval = Duration{} },
		"state":   func(c *Config) { c.StateFile = " " },
		"latex":   func(c *Config) { c.Latex.Compiler = "" },
		"journal": func(c *Config) { c.JournalPath = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			err := Validate(&cfg)
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "CONFIG_INVALID"))
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Viewer.Listen = "127.0.0.1:7777"
	cfg.Selection.PollInterval = Duration{750 * time.Millisecond}
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `poll_interval = "750ms"`)

	back, err := Load(Options{ConfigPath: path, DotEnvDir: filepath.Dir(path)})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7777", back.Viewer.Listen)
	assert.Equal(t, 750*time.Millisecond, back.Selection.PollInterval.Duration)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ctxview", "s.json"), expandHome("~/.ctxview/s.json"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
}
