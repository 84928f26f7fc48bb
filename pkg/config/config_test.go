package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s, err := Load(New())
	require.NoError(t, err)

	require.Equal(t, "http://127.0.0.1:5000", s.Server)
	require.Equal(t, "info", s.LogLevel)
	require.Equal(t, 5*time.Second, s.ConnectTimeout)
	require.Equal(t, 5, s.ReconnectionAttempts)
	require.False(t, s.Redis.RedisEnabled)
	require.Equal(t, "localhost:6379", s.Redis.RedisAddr)
	require.Empty(t, s.ConfigFile)

	opts := session.ExtractOptions(s.Controls([]string{"a.pdf"}))
	want := session.DefaultOptions()
	want.Files = []string{"a.pdf"}
	require.Equal(t, want, opts)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	p := writeConfig(t, `
server: http://docs.internal:8080
model: gemini-2.5-pro
output-size: long
slider: 0.4
show-pages: true
redis-enabled: true
connect-timeout: 2s
`)
	t.Setenv("DOCCHAT_OUTPUT_SIZE", "short")
	t.Setenv("DOCCHAT_PROMPT_ENHANCER", "false")

	v := New()
	v.Set(KeyConfigFile, p)
	s, err := Load(v)
	require.NoError(t, err)

	require.Equal(t, p, s.ConfigFile)
	require.Equal(t, "http://docs.internal:8080", s.Server)
	require.True(t, s.Redis.RedisEnabled)
	require.Equal(t, 2*time.Second, s.SocketOptions().Timeout)

	opts := session.ExtractOptions(s.Controls(nil))
	require.Equal(t, "gemini-2.5-pro", opts.Model)
	require.Equal(t, session.OutputShort, opts.OutputSize)
	require.Equal(t, 0.4, opts.SliderValue)
	require.True(t, opts.ShowPages)
	require.False(t, opts.PromptEnhancer)
	require.False(t, opts.RagDocSlider)
}

func TestLoadMissingExplicitConfig(t *testing.T) {
	v := New()
	v.Set(KeyConfigFile, filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load(v)
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("DOCCHAT_TEST_MODEL=from-dotenv\n"), 0o600))
	t.Setenv("DOCCHAT_TEST_MODEL", "")
	require.NoError(t, os.Unsetenv("DOCCHAT_TEST_MODEL"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), p))
	require.Equal(t, "from-dotenv", os.Getenv("DOCCHAT_TEST_MODEL"))
}

func TestControlsAreCopied(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCCHAT_MODEL", "m1")
	s, err := Load(New())
	require.NoError(t, err)

	c := s.Controls(nil)
	c.Values[session.ControlModel] = "changed"
	v, ok := s.Controls(nil).Lookup(session.ControlModel)
	require.True(t, ok)
	require.Equal(t, "m1", v)
}
