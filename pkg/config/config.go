// Package config resolves docchat settings from flags, environment, .env and
// the YAML config file, in that order of precedence.
package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/docchat/pkg/eventbus"
	"github.com/go-go-golems/docchat/pkg/render"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/go-go-golems/docchat/pkg/socketio"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "DOCCHAT"
	configName = "config"
	configType = "yaml"
	configDir  = ".docchat"
)

// Keys.
const (
	KeyServer               = "server"
	KeyConfigFile           = "config"
	KeyLogLevel             = "log-level"
	KeyLogFile              = "log-file"
	KeyStyle                = "style"
	KeyWordWrap             = "word-wrap"
	KeyConnectTimeout       = "connect-timeout"
	KeyReconnectionAttempts = "reconnection-attempts"
	KeyRedisEnabled         = "redis-enabled"
	KeyRedisAddr            = "redis-addr"
	KeyRedisGroup           = "redis-group"
	KeyRedisConsumer        = "redis-consumer"
)

// controlKeys are looked up only when explicitly set, so anything missing
// falls back to the request defaults table.
var controlKeys = []string{
	session.ControlOutputSize,
	session.ControlShowPages,
	session.ControlModel,
	session.ControlChangeLength,
	session.ControlSlider,
	session.ControlRagDoc,
	session.ControlPromptEnhancer,
}

type Settings struct {
	Server               string
	LogLevel             string
	LogFile              string
	Style                string
	WordWrap             int
	ConnectTimeout       time.Duration
	ReconnectionAttempts int
	Redis                eventbus.Settings

	// ConfigFile is the config file that was read, if any.
	ConfigFile string

	controls map[string]string
}

// New returns a viper instance with docchat defaults and env binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	bus := eventbus.DefaultSettings()
	sock := socketio.DefaultOptions()
	v.SetDefault(KeyServer, "http://127.0.0.1:5000")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyStyle, "auto")
	v.SetDefault(KeyWordWrap, 100)
	v.SetDefault(KeyConnectTimeout, sock.Timeout)
	v.SetDefault(KeyReconnectionAttempts, sock.ReconnectionAttempts)
	v.SetDefault(KeyRedisEnabled, false)
	v.SetDefault(KeyRedisAddr, bus.RedisAddr)
	v.SetDefault(KeyRedisGroup, bus.Group)
	v.SetDefault(KeyRedisConsumer, bus.Consumer)
	return v
}

// LoadDotEnv loads the given .env files into the process environment. Missing
// files are skipped; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.Wrapf(err, "load %s", p)
		}
		log.Debug().Str("component", "config").Str("path", p).Msg("loaded env file")
	}
	return nil
}

// Load reads the config file and returns the resolved settings. An explicit
// config file must exist; the default one is optional.
func Load(v *viper.Viper) (*Settings, error) {
	if explicit := v.GetString(KeyConfigFile); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, errors.Wrap(err, "config file")
		}
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, configDir))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	s := &Settings{
		Server:               strings.TrimSpace(v.GetString(KeyServer)),
		LogLevel:             v.GetString(KeyLogLevel),
		LogFile:              v.GetString(KeyLogFile),
		Style:                v.GetString(KeyStyle),
		WordWrap:             v.GetInt(KeyWordWrap),
		ConnectTimeout:       v.GetDuration(KeyConnectTimeout),
		ReconnectionAttempts: v.GetInt(KeyReconnectionAttempts),
		Redis: eventbus.Settings{
			RedisEnabled: v.GetBool(KeyRedisEnabled),
			RedisAddr:    v.GetString(KeyRedisAddr),
			Group:        v.GetString(KeyRedisGroup),
			Consumer:     v.GetString(KeyRedisConsumer),
		},
		ConfigFile: v.ConfigFileUsed(),
		controls:   map[string]string{},
	}
	if s.Server == "" {
		return nil, errors.New("server origin is empty")
	}
	for _, k := range controlKeys {
		if v.IsSet(k) {
			s.controls[k] = v.GetString(k)
		}
	}
	return s, nil
}

// Controls returns the request controls with the selected files.
func (s *Settings) Controls(files []string) session.MapControls {
	values := make(map[string]string, len(s.controls))
	for k, val := range s.controls {
		values[k] = val
	}
	return session.MapControls{Values: values, Files: files}
}

func (s *Settings) SocketOptions() socketio.Options {
	opts := socketio.DefaultOptions()
	if s.ConnectTimeout > 0 {
		opts.Timeout = s.ConnectTimeout
	}
	if s.ReconnectionAttempts >= 0 {
		opts.ReconnectionAttempts = s.ReconnectionAttempts
	}
	return opts
}

func (s *Settings) RenderSettings() render.Settings {
	return render.Settings{Style: s.Style, WordWrap: s.WordWrap}
}
