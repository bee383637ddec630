package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/ownership/internal/playground"
	"github.com/wippyai/ownership/rc"
)

var rootCmd = &cobra.Command{
	Use:   "rcplay",
	Short: "Shared/weak ownership playground",
	Long: `rcplay runs ownership scripts against shared and weak handles and
shows how use counts, weak counts and control blocks evolve.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(interactiveCmd)
	rootCmd.AddCommand(stressCmd)

	rootCmd.PersistentFlags().String("config", "", "path to rcplay.toml")
	rootCmd.PersistentFlags().String("color", "", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("memory", "", "control block memory source (heap|linear)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().Bool("synchronized", false, "use atomic reference counts")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every subcommand needs: configuration, a memory source and
// a renderer.
type env struct {
	cfg      playground.Config
	source   *playground.Source
	logger   *zap.Logger
	renderer *playground.Renderer
}

func (e *env) close(ctx context.Context) {
	if err := e.source.Close(ctx); err != nil {
		e.logger.Warn("close memory source", zap.Error(err))
	}
	_ = e.logger.Sync()
	rc.SetLogger(nil)
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := playground.NewLogger(cfg.Log, cfg.Log.Level == "debug")
	if err != nil {
		return nil, err
	}
	rc.SetLogger(logger.Named("rc"))

	source, err := playground.NewSource(cmd.Context(), cfg.Memory)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:      cfg,
		source:   source,
		logger:   logger,
		renderer: playground.NewRenderer(useColor(cfg.UI.Color)),
	}, nil
}

// loadConfig reads --config, then applies flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (playground.Config, error) {
	flags := cmd.Flags()
	cfg := playground.DefaultConfig()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := playground.LoadConfig(path)
		if err != nil {
			return playground.Config{}, err
		}
		cfg = loaded
	}

	if flags.Changed("color") {
		cfg.UI.Color, _ = flags.GetString("color")
	}
	if flags.Changed("memory") {
		cfg.Memory.Source, _ = flags.GetString("memory")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("synchronized") {
		cfg.Counts.Synchronized, _ = flags.GetBool("synchronized")
	}
	return cfg, cfg.Validate()
}

func useColor(mode string) bool {
	switch strings.ToLower(mode) {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func fail(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
