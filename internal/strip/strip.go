// Package strip removes top-level function definitions from C sources,
// keeping declarations, preprocessor lines and comments between them. The
// source is parsed with the tree-sitter C grammar.
package strip

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
)

// Result counts what one Source call found at the top level.
type Result struct {
	Functions int
	Errors    int
}

// Source returns src without its top-level function definitions. Regions
// the grammar cannot parse are kept as they are and counted in Errors.
func Source(src []byte, logger *slog.Logger) ([]byte, Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(tree_sitter.NewLanguage(tree_sitter_c.Language())); err != nil {
		return nil, Result{}, fmt.Errorf("load C grammar: %w", err)
	}
	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, Result{}, errors.New("parse C source: no tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	var out bytes.Buffer
	var res Result
	var last uint
	for i := uint(0); i < root.ChildCount(); i++ {
		n := root.Child(i)
		if n == nil {
			continue
		}
		switch n.Kind() {
		case "function_definition":
			out.Write(src[last:n.StartByte()])
			last = n.EndByte()
			res.Functions++
		case "ERROR":
			res.Errors++
			logger.Warn("unparsed region", "line", n.StartPosition().Row+1, "end_line", n.EndPosition().Row+1)
		}
	}
	out.Write(src[last:])
	return out.Bytes(), res, nil
}

// File strips the source at in and writes the result to out. in and out
// may name the same file.
func File(in, out string, logger *slog.Logger) (Result, error) {
	src, err := os.ReadFile(in)
	if err != nil {
		return Result{}, err
	}
	stripped, res, err := Source(src, logger)
	if err != nil {
		return res, fmt.Errorf("strip %s: %w", in, err)
	}
	if dir := filepath.Dir(out); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return res, fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(out, stripped, 0o644); err != nil {
		return res, err
	}
	return res, nil
}
