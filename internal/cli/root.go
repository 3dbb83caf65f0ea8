// Package cli provides the command-line interface for cmacro.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fwessels/cmacro"
	"github.com/fwessels/cmacro/internal/config"
	"github.com/fwessels/cmacro/internal/preprocessor"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

type configKey struct{}

type loggerKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "cmacro",
		Short: "cmacro - C macro extraction and expansion",
		Long: `cmacro extracts #define macros from C headers and expands them in C sources
as a plain text rewrite, producing sources a macro-unaware parser can read.

Conditional directives are masked with a comment marker, not evaluated.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			if cfg.ConfigFile != "" {
				logger.Debug("using config file", "path", cfg.ConfigFile)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = context.WithValue(ctx, configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./cmacro.yaml)")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringSlice("header", nil, "Header to extract macros from (repeatable, in priority order)")
	pf.String("prefix", "", "Only take definitions whose line starts with this text (default \"#define\"; bare include guards are skipped)")
	pf.String("output-dir", "", "Directory for expanded sources (default \"output/temp\")")
	pf.String("mode", "", "Matching mode (compat|strict)")
	pf.String("sentinel", "", "Marker placed before conditional directives (default \"//HC \")")
	pf.Int("jobs", 0, "Number of files expanded in parallel")
	pf.Bool("lenient", false, "Skip malformed definitions instead of failing")
	pf.Bool("object-like", false, "Accept definitions without a parameter list")
	pf.Bool("strip", false, "Remove function definitions from expanded sources")

	_ = rootCmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"compat", "strict"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newExpandCommand())
	rootCmd.AddCommand(newCatalogCommand())
	rootCmd.AddCommand(newScanCommand())
	rootCmd.AddCommand(newExpandStmtCommand())
	rootCmd.AddCommand(newStripCommand())
	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// getConfig retrieves the config from the command context.
func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{
		Prefix:    preprocessor.DefaultPrefix,
		OutputDir: config.DefaultOutputDir,
		Mode:      config.DefaultMode,
		Sentinel:  cmacro.DefaultSentinel,
		Jobs:      config.DefaultJobs,
	}
}

// getLogger retrieves the logger from the command context.
func getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "cmacro v%s (%s)\n", Version, GitCommit)
		},
	}
}

func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for cmacro.

Bash:
  $ source <(cmacro completion bash)

Zsh:
  $ cmacro completion zsh > "${fpath[1]}/_cmacro"

Fish:
  $ cmacro completion fish | source

PowerShell:
  PS> cmacro completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
