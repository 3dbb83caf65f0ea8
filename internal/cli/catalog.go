package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fwessels/cmacro"
	"github.com/fwessels/cmacro/internal/preprocessor"
	"github.com/fwessels/cmacro/internal/runner"
)

func newCatalogCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the macro catalog built from the headers",
		Long: `Parse the configured headers and print every macro in priority order.
The first entry with a given name is the one expansion applies.`,
		Example: `  cmacro catalog --header inc/util.h
  cmacro catalog --format json > macros.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := runner.New(getConfig(cmd.Context()), getLogger(cmd.Context())).LoadCatalog()
			if err != nil {
				return err
			}
			return renderCatalog(cmd.OutOrStdout(), catalog, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|markdown|json|yaml)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "markdown", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func renderCatalog(w io.Writer, catalog cmacro.Catalog, format string) error {
	if catalog == nil {
		catalog = cmacro.Catalog{}
	}
	switch format {
	case "table", "":
		return renderCatalogTable(w, catalog)
	case "md", "markdown":
		return renderCatalogMarkdown(w, catalog)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(catalog); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (expected table, markdown, json or yaml)", format)
	}
}

func paramList(m cmacro.Macro) string {
	if !m.IsFunction() {
		return "-"
	}
	return "(" + strings.Join(m.Params, ", ") + ")"
}

func renderCatalogTable(w io.Writer, catalog cmacro.Catalog) error {
	if len(catalog) == 0 {
		_, _ = fmt.Fprintln(w, "(0 macros)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Name", "Params", "Body"})
	for i, m := range catalog {
		t.AppendRow(table.Row{i + 1, m.Name, paramList(m), m.Body})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d macros)\n", len(catalog))
	return nil
}

func renderCatalogMarkdown(w io.Writer, catalog cmacro.Catalog) error {
	_, _ = fmt.Fprintln(w, "| Name | Params | Body |")
	_, _ = fmt.Fprintln(w, "| --- | --- | --- |")
	for _, m := range catalog {
		_, _ = fmt.Fprintf(w, "| %s | %s | `%s` |\n", m.Name, paramList(m), strings.ReplaceAll(m.Body, "|", `\|`))
	}
	return nil
}

func newScanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <header>",
		Short: "Print the raw definitions found in a header",
		Long: `Print every definition starting with the configured prefix, with line
continuations reassembled, exactly as the catalog builder receives them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd.Context())
			prefix := cfg.Prefix
			if prefix == "" {
				prefix = preprocessor.DefaultPrefix
			}
			defs, err := preprocessor.ScanFile(args[0], prefix)
			if err != nil {
				return err
			}
			getLogger(cmd.Context()).Debug("scanned header", "path", args[0], "definitions", len(defs))
			out := cmd.OutOrStdout()
			for _, d := range defs {
				if _, err := fmt.Fprintln(out, strings.ReplaceAll(d, "\n", " \\\n")); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
