package cmds

import (
	"io"
	"time"

	"github.com/go-go-golems/docchat/pkg/config"
	"github.com/go-go-golems/docchat/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app holds what every subcommand needs once flags are parsed.
type app struct {
	v        *viper.Viper
	settings *config.Settings
	envFiles []string
	logFile  io.Closer
}

func NewRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:          "docchat",
		Short:        "docchat asks questions about uploaded documents from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logFile != nil {
				return a.logFile.Close()
			}
			return nil
		},
	}

	f := rootCmd.PersistentFlags()
	f.String(config.KeyServer, "http://127.0.0.1:5000", "Origin of the document chat server")
	f.String(config.KeyConfigFile, "", "Config file (default $HOME/.docchat/config.yaml)")
	f.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "Env files to load before reading settings")
	f.String(config.KeyLogLevel, "info", "Log level (trace, debug, info, warn, error)")
	f.String(config.KeyLogFile, "", "Write logs to this file instead of stderr")
	f.String(config.KeyStyle, "auto", "Markdown style (auto, dark, light, notty, ...)")
	f.Int(config.KeyWordWrap, 100, "Wrap rendered markdown at this width")
	f.Duration(config.KeyConnectTimeout, 5*time.Second, "Connect and handshake timeout")
	f.Int(config.KeyReconnectionAttempts, 5, "Reconnection attempts after a dropped connection")
	f.Bool(config.KeyRedisEnabled, false, "Route socket events through Redis Streams")
	f.String(config.KeyRedisAddr, "localhost:6379", "Redis address")
	f.String(config.KeyRedisGroup, "docchat-ui", "Redis consumer group")
	f.String(config.KeyRedisConsumer, "ui-1", "Redis consumer name")

	// Request controls. Unset flags leave the value to env, config or the
	// request defaults.
	d := session.DefaultOptions()
	f.String(session.ControlModel, d.Model, "Model to answer with")
	f.String(session.ControlOutputSize, string(d.OutputSize), "Answer length (short, medium, long)")
	f.Bool(session.ControlShowPages, d.ShowPages, "Show page references")
	f.Bool(session.ControlChangeLength, d.ChangeLength, "Enable the change-length control")
	f.Float64(session.ControlSlider, d.SliderValue, "Slider value sent with each request")
	f.Bool(session.ControlRagDoc, d.RagDocSlider, "Enable the RAG document slider")
	f.Bool(session.ControlPromptEnhancer, d.PromptEnhancer, "Enable the prompt enhancer")

	for _, k := range []string{
		config.KeyServer, config.KeyConfigFile, config.KeyLogLevel, config.KeyLogFile,
		config.KeyStyle, config.KeyWordWrap, config.KeyConnectTimeout, config.KeyReconnectionAttempts,
		config.KeyRedisEnabled, config.KeyRedisAddr, config.KeyRedisGroup, config.KeyRedisConsumer,
		session.ControlModel, session.ControlOutputSize, session.ControlShowPages, session.ControlChangeLength,
		session.ControlSlider, session.ControlRagDoc, session.ControlPromptEnhancer,
	} {
		cobra.CheckErr(a.v.BindPFlag(k, f.Lookup(k)))
	}

	rootCmd.AddCommand(
		newQueryCommand(a),
		newChatCommand(a),
		newUploadCommand(a),
		newOptionsCommand(a),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}
	s, err := config.Load(a.v)
	if err != nil {
		return errors.Wrap(err, "load settings")
	}
	a.settings = s

	closer, err := initLogger(s.LogLevel, s.LogFile, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.logFile = closer
	return nil
}
