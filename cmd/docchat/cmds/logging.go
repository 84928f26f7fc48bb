package cmds

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// initLogger points the global logger at w, or at file when one is given,
// and applies level. The returned closer releases the log file.
func initLogger(level, file string, w io.Writer) (io.Closer, error) {
	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		l, err := zerolog.ParseLevel(level)
		if err != nil {
			return nil, errors.Wrapf(err, "parse log level %q", level)
		}
		lvl = l
	}
	zerolog.SetGlobalLevel(lvl)

	var closer io.Closer = nopCloser{}
	var out io.Writer
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "open log file")
		}
		out = f
		closer = f
	} else {
		out = zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
			cw.Out = w
		})
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

// runLogger returns the logger a run hands to its socket and bus. Console
// output is dropped while the terminal UI owns the screen; a log file is
// unaffected.
func runLogger(tui bool, file string) zerolog.Logger {
	if tui && file == "" {
		log.Logger = zerolog.Nop()
	}
	return log.Logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
