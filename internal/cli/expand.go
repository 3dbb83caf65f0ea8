package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fwessels/cmacro/internal/runner"
	"github.com/fwessels/cmacro/internal/strip"
)

func newExpandCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "expand [sources...]",
		Short: "Expand header macros in C sources",
		Long: `Build the macro catalog from the configured headers and write a macro-expanded
copy of every source into the output directory, one statement per line.

Sources default to the "sources" list of the config file and may be globs.`,
		Example: `  # Expand HAL macros in one file
  cmacro expand --header inc/stm32_hal_adc.h --prefix "#define __HAL_" src/adc.c

  # Re-expand whenever a header or source changes
  cmacro expand --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd.Context())
			sources := args
			if len(sources) == 0 {
				sources = cfg.Sources
			}
			if len(sources) == 0 {
				return errors.New("no sources given\nHint: pass source files or set \"sources\" in cmacro.yaml")
			}

			logger := getLogger(cmd.Context())
			if len(cfg.Headers) == 0 {
				logger.Warn("no headers configured, only conditional directives will be rewritten")
			}
			r := runner.New(cfg, logger)
			out := cmd.OutOrStdout()

			if !watch {
				res, err := r.Run(cmd.Context(), sources)
				if err != nil {
					return err
				}
				printResult(out, res)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			_, _ = fmt.Fprintln(out, "Watching for changes (Ctrl+C to stop)...")
			return r.Watch(ctx, sources, func(res *runner.Result, err error) {
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						logger.Error("expansion failed", "error", err)
					}
					return
				}
				printResult(out, res)
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-run when a header or source changes")
	return cmd
}

func printResult(w io.Writer, res *runner.Result) {
	for _, f := range res.Files {
		_, _ = fmt.Fprintf(w, "  %s -> %s (%d statements, %d expanded", f.Input, f.Output, f.Stats.Statements, f.Stats.Expanded)
		if f.Stripped > 0 {
			_, _ = fmt.Fprintf(w, ", %d %s stripped", f.Stripped, plural(f.Stripped, "function"))
		}
		_, _ = fmt.Fprintln(w, ")")
	}
	_, _ = fmt.Fprintf(w, "Expanded %d %s with %d macros\n", len(res.Files), plural(len(res.Files), "file"), res.Macros)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func newExpandStmtCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "expand-stmt <statement>",
		Short: "Expand a single statement against the catalog",
		Example: `  cmacro expand-stmt --header inc/util.h "int m = MAX(x, y);"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := runner.New(getConfig(cmd.Context()), getLogger(cmd.Context())).Engine()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), eng.ExpandStatement(strings.Join(args, " ")))
			return err
		},
	}
}

func newStripCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "strip <source>",
		Short: "Print a source without its function definitions",
		Long: `Parse a C source and print it with every top-level function definition
removed, keeping declarations, preprocessor lines and comments.

Run it on expanded output, or use "expand --strip" to do both in one pass.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, res, err := strip.Source(src, getLogger(cmd.Context()))
			if err != nil {
				return err
			}
			getLogger(cmd.Context()).Debug("stripped", "path", args[0], "functions", res.Functions, "errors", res.Errors)
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
