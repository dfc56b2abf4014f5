// griptape runs configured task pipelines.
//
// Usage:
//
//	griptape run <pipeline> [args...] [--tui]
//	griptape validate [pipeline]
//	griptape chunk <file> [--max-tokens=N] [--overlap=N]
//	griptape ingest <file.json...> [--namespace=NS] [--db=PATH]
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aristath/griptape/internal/config"
	"github.com/aristath/griptape/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// app carries state shared by every subcommand once the root has loaded
// configuration.
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "griptape",
		Short:         "Run chained LLM task pipelines",
		Long:          "griptape builds pipelines of prompt, query and image tasks from configuration\nand runs them, feeding each task the output of the one before it.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Config file (JSON or YAML); default merges ~/.griptape and ./.griptape config.json")
	f.StringVar(&a.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newValidateCmd(a))
	root.AddCommand(newChunkCmd(a))
	root.AddCommand(newIngestCmd(a))
	return root
}

// load reads .env, the configuration and sets up logging.
func (a *app) load(logOut io.Writer) error {
	_ = godotenv.Load()

	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFile(a.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logging.Init(level, cfg.Log.Format, logOut)

	a.cfg = cfg
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
