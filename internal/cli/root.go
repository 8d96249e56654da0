// Package cli implements the linewatch command line.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"jordanella.com/linewatch/internal/adb"
	"jordanella.com/linewatch/internal/clock"
	"jordanella.com/linewatch/internal/config"
	"jordanella.com/linewatch/internal/logging"
)

// Version is set at build time with -ldflags "-X jordanella.com/linewatch/internal/cli.Version=..."
var Version = "dev"

const envPrefix = "LINEWATCH"

// rootOptions is shared by every subcommand once PersistentPreRunE has run
type rootOptions struct {
	v        *viper.Viper
	settings *config.Settings
	logger   *zap.Logger

	// Device and clock hooks; nil means the real adb binary and wall clock
	runner  adb.Runner
	sleeper clock.Sleeper
}

// NewRootCommand builds a fresh command tree. Each call has its own viper
// instance, so tests can run commands side by side.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	opts.v = viper.New()
	opts.logger = zap.NewNop()

	root := &cobra.Command{
		Use:           "linewatch",
		Short:         "Drives an Android device over ADB and pauses when three green lines appear.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "Settings.ini", "settings file")
	flags.String("adb", "", "path to the adb binary or its folder")
	flags.StringP("serial", "s", "", "device serial")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-file", "", "rotated log file; empty disables")

	for key, flag := range map[string]string{
		"config":     "config",
		"adb.path":   "adb",
		"adb.serial": "serial",
		"log.level":  "log-level",
		"log.file":   "log-file",
	} {
		_ = opts.v.BindPFlag(key, flags.Lookup(flag))
	}
	opts.v.SetEnvPrefix(envPrefix)
	opts.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	opts.v.AutomaticEnv()

	root.AddCommand(
		newRunCmd(opts),
		newDetectCmd(opts),
		newUploadCmd(opts),
		newHistoryCmd(opts),
		newVersionCmd(),
	)
	return root
}

// initialize loads Settings.ini, applies flag and env overrides and builds the logger
func (o *rootOptions) initialize(cmd *cobra.Command) error {
	settings, err := config.LoadOrDefault(o.v.GetString("config"))
	if err != nil {
		return err
	}

	if o.v.IsSet("adb.path") {
		settings.ADB.Path = o.v.GetString("adb.path")
	}
	if o.v.IsSet("adb.serial") {
		settings.ADB.Serial = o.v.GetString("adb.serial")
	}
	if o.v.IsSet("log.level") {
		settings.Logging.Level = o.v.GetString("log.level")
	}
	if o.v.IsSet("log.file") {
		settings.Logging.File = o.v.GetString("log.file")
	}

	logger, err := logging.New(settings.Logging, zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	o.settings = settings
	o.logger = logger
	logger.Debug("Settings loaded", zap.String("config", o.v.GetString("config")), zap.String("version", Version))
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
