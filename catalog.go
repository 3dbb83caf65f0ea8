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

// Package cmacro extracts C macro definitions from header text and applies
// them as a textual rewrite pass over C sources.
//
// It is not a C preprocessor. Conditional directives are masked rather than
// evaluated, expansion is a single non-recursive sweep, and matching works on
// raw text rather than tokens.
package cmacro

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/fwessels/cmacro/internal/preprocessor"
)

// Macro is one parsed #define. A nil Params marks an object-like macro; a
// non-nil slice, even an empty one, marks a function-like macro.
type Macro struct {
	Name   string   `json:"name" yaml:"name"`
	Params []string `json:"params" yaml:"params"`
	Body   string   `json:"body" yaml:"body"`
}

func (m Macro) IsFunction() bool { return m.Params != nil }

func (m Macro) String() string {
	if !m.IsFunction() {
		return m.Name + " " + m.Body
	}
	return fmt.Sprintf("%s(%s) %s", m.Name, strings.Join(m.Params, ", "), m.Body)
}

// Catalog is an ordered list of macros. Order is priority: expansion tries
// entries first to last and duplicates are kept.
type Catalog []Macro

// Lookup returns the first macro named name.
func (c Catalog) Lookup(name string) (Macro, bool) {
	for _, m := range c {
		if m.Name == name {
			return m, true
		}
	}
	return Macro{}, false
}

func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, m := range c {
		names[i] = m.Name
	}
	return names
}

var ErrMalformedDefinition = errors.New("malformed macro definition")

// DefinitionError reports a definition string that does not match the
// #define grammar. Index is the position in the input list, or -1.
type DefinitionError struct {
	Index int
	Text  string
}

func (e *DefinitionError) Error() string {
	text := e.Text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i] + " ..."
	}
	if e.Index < 0 {
		return fmt.Sprintf("%v: %q", ErrMalformedDefinition, text)
	}
	return fmt.Sprintf("definition %d: %v: %q", e.Index, ErrMalformedDefinition, text)
}

func (e *DefinitionError) Unwrap() error { return ErrMalformedDefinition }

var (
	reFuncDefine   = regexp.MustCompile(`#define\s*(\w+)\s*\((.*?)\)\s*([\s\S]*)`)
	reObjectDefine = regexp.MustCompile(`#define\s+(\w+)([\s\S]*)`)
	// reGuardDefine matches a bare "#define NAME", the include guard form.
	reGuardDefine = regexp.MustCompile(`^\s*#define\s+\w+\s*$`)
)

const (
	doWrapOpen  = "do{"
	doWrapClose = "} while(0)"
)

// ParseDefinition parses one function-like definition of the form
// "#define NAME(p1, p2) body". The body may span several lines.
func ParseDefinition(def string) (Macro, error) {
	m, ok := parseFunctionDefine(def)
	if !ok {
		return Macro{}, &DefinitionError{Index: -1, Text: def}
	}
	return m, nil
}

func parseFunctionDefine(def string) (Macro, bool) {
	sm := reFuncDefine.FindStringSubmatch(def)
	if sm == nil {
		return Macro{}, false
	}
	params := []string{}
	for _, p := range strings.Split(sm[2], ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return Macro{Name: sm[1], Params: params, Body: normalizeBody(sm[3])}, true
}

func parseObjectDefine(def string) (Macro, bool) {
	sm := reObjectDefine.FindStringSubmatch(def)
	if sm == nil {
		return Macro{}, false
	}
	return Macro{Name: sm[1], Body: normalizeBody(sm[2])}, true
}

// normalizeBody collapses whitespace runs to single spaces and unwraps the
// do{ ... } while(0) statement idiom.
func normalizeBody(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if strings.HasPrefix(body, doWrapOpen) && strings.HasSuffix(body, doWrapClose) &&
		len(body) >= len(doWrapOpen)+len(doWrapClose) {
		body = strings.TrimSpace(body[len(doWrapOpen) : len(body)-len(doWrapClose)])
	}
	return body
}

type parseConfig struct {
	lenient    bool
	objectLike bool
	logger     *slog.Logger
}

type ParseOption func(*parseConfig)

// WithLenient skips malformed definitions instead of failing the build.
// Each skipped entry is reported on logger at warn level.
func WithLenient(logger *slog.Logger) ParseOption {
	return func(c *parseConfig) {
		c.lenient = true
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObjectLike accepts "#define NAME body" as an object-like macro when
// no parameter list follows the name.
func WithObjectLike() ParseOption {
	return func(c *parseConfig) { c.objectLike = true }
}

// ParseDefinitions builds a catalog from raw definition strings, keeping
// input order. By default the first malformed definition aborts the build.
// A bare "#define NAME" with no body, as used by include guards, is skipped
// unless object-like macros are accepted.
func ParseDefinitions(defs []string, opts ...ParseOption) (Catalog, error) {
	cfg := parseConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}

	catalog := make(Catalog, 0, len(defs))
	for i, def := range defs {
		m, ok := parseFunctionDefine(def)
		if !ok && cfg.objectLike {
			m, ok = parseObjectDefine(def)
		}
		if !ok && reGuardDefine.MatchString(def) {
			cfg.logger.Debug("skipping bodyless definition", "index", i, "text", def)
			continue
		}
		if !ok {
			err := &DefinitionError{Index: i, Text: def}
			if !cfg.lenient {
				return nil, err
			}
			cfg.logger.Warn("skipping definition", "index", i, "error", err)
			continue
		}
		catalog = append(catalog, m)
	}
	return catalog, nil
}

// LoadHeader scans path for definitions starting with prefix and parses
// them into a catalog.
func LoadHeader(path, prefix string, opts ...ParseOption) (Catalog, error) {
	defs, err := preprocessor.ScanFile(path, prefix)
	if err != nil {
		return nil, err
	}
	catalog, err := ParseDefinitions(defs, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}
