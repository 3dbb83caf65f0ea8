/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmacro

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

type Options struct {
	Mode Mode
	// Sentinel is written in front of conditional directives. Empty means
	// DefaultSentinel.
	Sentinel string
	Logger   *slog.Logger
}

// Engine rewrites source text against a fixed catalog. It holds no mutable
// state, so one Engine may process several files concurrently.
type Engine struct {
	catalog  Catalog
	mode     Mode
	sentinel string
	logger   *slog.Logger
}

// Stats summarizes one Process run.
type Stats struct {
	Lines      int
	Statements int
	Expanded   int
}

func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Statements += o.Statements
	s.Expanded += o.Expanded
}

func NewEngine(catalog Catalog, opts Options) *Engine {
	e := &Engine{
		catalog:  catalog,
		mode:     opts.Mode,
		sentinel: opts.Sentinel,
		logger:   opts.Logger,
	}
	if e.sentinel == "" {
		e.sentinel = DefaultSentinel
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

func (e *Engine) Catalog() Catalog { return e.catalog }

func (e *Engine) Mode() Mode { return e.mode }

// ExpandStatement applies the whole catalog to one statement.
func (e *Engine) ExpandStatement(stmt string) string {
	return e.catalog.ExpandStatement(stmt, e.mode)
}

// Process reads r line by line, neutralizes conditional directives and
// rewrites every ';'-terminated statement. Each statement is written
// followed by a newline; line breaks inside a statement are kept as read.
// Text left after the last ';' is written as a final statement unless it is
// blank.
func (e *Engine) Process(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	var st Stats
	bw := bufio.NewWriter(w)
	br := bufio.NewReader(r)

	emit := func(stmt string) error {
		out := e.ExpandStatement(stmt)
		st.Statements++
		if out != stmt {
			st.Expanded++
		}
		if _, err := bw.WriteString(out); err != nil {
			return err
		}
		return bw.WriteByte('\n')
	}

	var buf string
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return st, err
		}
		if line == "" && err == io.EOF {
			break
		}
		st.Lines++
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		buf += Neutralize(line, e.sentinel) + "\n"

		for {
			pos := strings.IndexByte(buf, ';')
			if pos < 0 {
				break
			}
			stmt := buf[:pos+1]
			buf = strings.TrimLeftFunc(buf[pos+1:], unicode.IsSpace)
			if err := emit(stmt); err != nil {
				return st, err
			}
		}
		if err == io.EOF {
			break
		}
	}
	if strings.TrimSpace(buf) != "" {
		if err := emit(buf); err != nil {
			return st, err
		}
	}
	if err := bw.Flush(); err != nil {
		return st, err
	}

	e.logger.Debug("processed", "lines", st.Lines, "statements", st.Statements, "expanded", st.Expanded)
	return st, nil
}

// ProcessFile rewrites the file at in into out, creating the directory of
// out first. Only I/O failures are reported.
func (e *Engine) ProcessFile(ctx context.Context, in, out string) (Stats, error) {
	if dir := filepath.Dir(out); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return Stats{}, fmt.Errorf("create output directory: %w", err)
		}
	}

	src, err := os.Open(in)
	if err != nil {
		return Stats{}, err
	}
	defer src.Close()

	dst, err := os.Create(out)
	if err != nil {
		return Stats{}, err
	}

	st, err := e.Process(ctx, src, dst)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return st, fmt.Errorf("expand %s: %w", in, err)
	}

	e.logger.Info("expanded", "input", in, "output", out, "statements", st.Statements, "expanded", st.Expanded)
	return st, nil
}
