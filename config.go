package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind       string
	port       int
	tcpPort    int
	questions  string
	highscores string
	answerTime int
	settleTime time.Duration
	profile    bool
	tlsCert    string
	tlsKey     string
	verbose    bool
	version    bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.tcpPort < 1 || c.tcpPort > 65535 {
		return fmt.Errorf("invalid tcp port (must be between 1-65535 inclusive): %d", c.tcpPort)
	}
	if c.tcpPort == c.port {
		return errors.New("--port and --tcp-port must differ")
	}
	if c.answerTime < 1 {
		return fmt.Errorf("invalid answer time (must be at least 1 second): %d", c.answerTime)
	}
	if c.settleTime < 0 {
		return fmt.Errorf("invalid settle time (must not be negative): %s", c.settleTime)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) wsScheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "wss"
	}
	return "ws"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quizbox",
		Short:         "A real-time multiplayer trivia server, playable over TCP or WebSocket.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return Serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZBOX_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port for the HTTP/WebSocket listener (env: QUIZBOX_PORT)")
	fs.IntVarP(&cfg.tcpPort, "tcp-port", "t", 65432, "port for the raw TCP listener (env: QUIZBOX_TCP_PORT)")
	fs.StringVarP(&cfg.questions, "questions", "q", "data/questions.json", "path to the question bank (env: QUIZBOX_QUESTIONS)")
	fs.StringVar(&cfg.highscores, "highscores", "data/highscore.json", "path to the highscore file (env: QUIZBOX_HIGHSCORES)")
	fs.IntVar(&cfg.answerTime, "answer-time", 15, "default answer window per question, in seconds (env: QUIZBOX_ANSWER_TIME)")
	fs.DurationVar(&cfg.settleTime, "settle-time", 3*time.Second, "pause between questions (env: QUIZBOX_SETTLE_TIME)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: QUIZBOX_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: QUIZBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: QUIZBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUIZBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: QUIZBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quizbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
