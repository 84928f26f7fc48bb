package cmds

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := root.Execute()
	return out.String(), err
}

func TestOptionsCommand(t *testing.T) {
	t.Setenv("DOCCHAT_MODEL", "gemini-2.5-pro")
	t.Setenv("DOCCHAT_OUTPUT_SIZE", "long")

	out, err := execute(t, "options", "--file", "a.pdf", "--file", " b.pdf ", "--input", "hi")
	require.NoError(t, err)

	var req session.Request
	require.NoError(t, yaml.Unmarshal([]byte(out), &req))
	require.Equal(t, "hi", req.Input)
	require.Equal(t, []string{"a.pdf", "b.pdf"}, req.PDFFiles)
	require.Equal(t, "gemini-2.5-pro", req.Model)
	require.Equal(t, session.OutputLong, req.OutputSize)
	require.Equal(t, 0.8, req.SliderValue)
	require.True(t, req.PromptEnhancer)
	require.Empty(t, req.ContentID)
}

func TestOptionsCommandFromConfigFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("slider: 0.3\nprompt-enhancer: false\n"), 0o600))

	out, err := execute(t, "options", "--config", p, "--content-id", "c-1")
	require.NoError(t, err)

	var req session.Request
	require.NoError(t, yaml.Unmarshal([]byte(out), &req))
	require.Equal(t, 0.3, req.SliderValue)
	require.False(t, req.PromptEnhancer)
	require.Equal(t, "c-1", req.ContentID)
}

func TestControlFlagsOverrideEnv(t *testing.T) {
	t.Setenv("DOCCHAT_MODEL", "gemini-2.5-pro")
	t.Setenv("DOCCHAT_OUTPUT_SIZE", "long")

	out, err := execute(t, "options", "--model", "gemini-2.0-pro",
		"--slider", "0.3", "--show-pages", "--prompt-enhancer=false")
	require.NoError(t, err)

	var req session.Request
	require.NoError(t, yaml.Unmarshal([]byte(out), &req))
	require.Equal(t, "gemini-2.0-pro", req.Model)
	require.Equal(t, session.OutputLong, req.OutputSize)
	require.Equal(t, 0.3, req.SliderValue)
	require.True(t, req.ShowPages)
	require.False(t, req.PromptEnhancer)
	require.False(t, req.ChangeLength)
	require.False(t, req.RagDocSlider)
}

func TestUnsetControlFlagsKeepConfigFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("slider: 0.3\nshow-pages: true\n"), 0o600))

	out, err := execute(t, "options", "--config", p, "--model", "gemini-2.5-pro")
	require.NoError(t, err)

	var req session.Request
	require.NoError(t, yaml.Unmarshal([]byte(out), &req))
	require.Equal(t, 0.3, req.SliderValue)
	require.True(t, req.ShowPages)
	require.Equal(t, "gemini-2.5-pro", req.Model)
}

func TestBadLogLevel(t *testing.T) {
	_, err := execute(t, "options", "--log-level", "loud")
	require.Error(t, err)
}

func TestNoTUIRequiresPrompt(t *testing.T) {
	_, err := execute(t, "query", "--no-tui", "--file", "a.pdf")
	require.ErrorContains(t, err, "prompt is required")
}

func TestRedirectedOutputRequiresPrompt(t *testing.T) {
	_, err := execute(t, "chat", "--content-id", "c1")
	require.ErrorContains(t, err, "prompt is required")
}

func TestUseTUI(t *testing.T) {
	var buf bytes.Buffer
	require.False(t, useTUI(false, &buf, &buf))

	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.False(t, isTerminal(f))
	require.False(t, useTUI(false, f, f))
	require.False(t, useTUI(true, f, f))
}

func TestRunLoggerSilencesConsoleUnderTUI(t *testing.T) {
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })

	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)
	l := runLogger(false, "")
	l.Info().Msg("console")
	require.Contains(t, buf.String(), "console")

	buf.Reset()
	l = runLogger(true, "docchat.log")
	l.Info().Msg("to file")
	require.Contains(t, buf.String(), "to file")

	buf.Reset()
	l = runLogger(true, "")
	l.Info().Msg("hidden")
	log.Info().Msg("hidden too")
	require.Empty(t, buf.String())
}

func TestUploadCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload", r.URL.Path)
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		_ = f.Close()
		_ = json.NewEncoder(w).Encode(map[string]string{"filename": "stored-" + hdr.Filename})
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o600))

	out, err := execute(t, "upload", "--server", srv.URL, p)
	require.NoError(t, err)
	require.Equal(t, "stored-report.pdf\n", out)
}

func TestInitLoggerLevels(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	c, err := initLogger("warn", "", &buf)
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	logPath := filepath.Join(t.TempDir(), "docchat.log")
	c, err = initLogger("debug", logPath, &buf)
	require.NoError(t, err)
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
	require.NoError(t, c.Close())
	_, err = os.Stat(logPath)
	require.NoError(t, err)

	_, err = initLogger("nope", "", &buf)
	require.Error(t, err)
}
