package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crashscan/crashscan-go/pkg/crashscan"
	"github.com/crashscan/crashscan-go/pkg/crashscan/analyzers"
	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

// Output formats accepted by --format.
const (
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

// config holds the resolved settings from flags, environment and config file.
type config struct {
	Game        string        `mapstructure:"game"`
	RulesDir    string        `mapstructure:"rules-dir"`
	FormIDDB    string        `mapstructure:"formid-db"`
	LoadOrder   string        `mapstructure:"load-order"`
	FCX         bool          `mapstructure:"fcx"`
	GameDir     string        `mapstructure:"game-dir"`
	LogDir      string        `mapstructure:"log-dir"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxParallel int           `mapstructure:"max-parallel"`
	Format      string        `mapstructure:"format"`
	View        string        `mapstructure:"view"`
	Color       string        `mapstructure:"color"`
	Stats       bool          `mapstructure:"stats"`
	Verbose     bool          `mapstructure:"verbose"`
}

func (c *config) validate() error {
	switch c.Format {
	case "", formatMarkdown, formatJSON:
	default:
		return fmt.Errorf("invalid format %q: must be 'markdown' or 'json'", c.Format)
	}
	switch c.Color {
	case "", "auto", "always", "never":
	default:
		return fmt.Errorf("invalid color mode %q: must be 'auto', 'always' or 'never'", c.Color)
	}
	if _, err := crashscan.ParseView(c.View); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %v", c.Timeout)
	}
	if c.MaxParallel < 0 {
		return fmt.Errorf("max-parallel must be non-negative, got %d", c.MaxParallel)
	}
	if c.FCX && c.GameDir == "" {
		return errors.New("--fcx needs --game-dir")
	}
	return nil
}

// app carries state shared by all subcommands of one root command.
type app struct {
	v      *viper.Viper
	cfg    config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "crashscan",
		Short: "Analyze Bethesda game crash logs",
		Long: `crashscan reads crash logs written by Buffout 4 and Crash Logger SSE,
runs a set of analyzers over them and prints a report of likely causes:
known error signatures, suspicious plugins and FormIDs, problematic or
conflicting mods, and crash generator settings worth changing.

Settings are read from flags, CRASHSCAN_* environment variables and a
.crashscan.yaml file in the current or home directory.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default .crashscan.yaml in . or $HOME)")
	pf.StringP("game", "g", analyzers.DefaultGame, "rule set to use (fallout4, skyrimse)")
	pf.String("rules-dir", "", "directory with <game>.yaml rule documents overriding the built-in ones")
	pf.String("formid-db", "", "SQLite FormID database used to describe FormID suspects")
	pf.BoolP("verbose", "v", false, "enable debug logging on stderr")

	root.AddCommand(newScanCmd(a))
	root.AddCommand(newRulesCmd(a))
	root.AddCommand(newFormIDCmd(a))
	root.AddCommand(newCompletionCmd())
	return root
}

// setup merges defaults, config file, environment and flags into a.cfg.
func (a *app) setup(cmd *cobra.Command) error {
	v := a.v
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".crashscan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}
	v.SetEnvPrefix("CRASHSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	if err := v.Unmarshal(&a.cfg); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := a.cfg.validate(); err != nil {
		return err
	}

	a.logger = newLogger(cmd.ErrOrStderr(), a.cfg.Verbose)
	applyColorMode(a.cfg.Color)
	if used := v.ConfigFileUsed(); used != "" {
		a.logger.Debug("config file loaded", "path", used)
	}
	return nil
}

// newLogger returns a slog logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	h := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: false,
		Prefix:          "crashscan",
	})
	if verbose {
		h.SetLevel(charmlog.DebugLevel)
	} else {
		h.SetLevel(charmlog.WarnLevel)
	}
	return slog.New(h)
}

func applyColorMode(mode string) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	}
}

func (a *app) game() string {
	if a.cfg.Game == "" {
		return analyzers.DefaultGame
	}
	return a.cfg.Game
}

// ruleSource layers --rules-dir over the built-in rule documents.
func (a *app) ruleSource() rules.Source {
	var src rules.LayeredSource
	if a.cfg.RulesDir != "" {
		src = append(src, rules.DirSource{Dir: a.cfg.RulesDir})
	}
	return append(src, rules.DefaultSource())
}
