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
	"fmt"
	"strings"

	"github.com/fwessels/cmacro/internal/preprocessor"
)

// Mode selects how names, parameters and argument lists are matched.
type Mode int

const (
	// ModeCompat matches names and parameters as raw substrings and ends an
	// argument list at the first ')' after the first '('. This is the
	// historical HAL rewrite behavior, false positives included: MAX also
	// matches inside MAXIMUM, and MAX(f(x), y) is cut at the first ')'.
	ModeCompat Mode = iota
	// ModeStrict matches whole identifiers only, balances parentheses while
	// collecting arguments, and expands every call site in the statement.
	ModeStrict
)

func (m Mode) String() string {
	switch m {
	case ModeCompat:
		return "compat"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "compat":
		return ModeCompat, nil
	case "strict":
		return ModeStrict, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want compat or strict)", s)
	}
}

// ExpandMacro applies one macro to one statement. Anything that is not a
// well-formed call site with the declared number of arguments leaves the
// statement unchanged.
func ExpandMacro(m Macro, stmt string, mode Mode) string {
	if m.Name == "" || !strings.Contains(stmt, m.Name) {
		return stmt
	}
	if mode == ModeStrict {
		return expandStrict(m, stmt)
	}
	return expandCompat(m, stmt)
}

func expandCompat(m Macro, stmt string) string {
	if !m.IsFunction() {
		return strings.ReplaceAll(stmt, m.Name, m.Body)
	}

	start := strings.Index(stmt, m.Name)
	open := strings.IndexByte(stmt[start:], '(')
	if open < 0 {
		return stmt
	}
	// the close paren is searched from the name, not from the open paren
	end := strings.IndexByte(stmt[start:], ')')
	if end < open {
		return stmt
	}

	args := strings.Split(stmt[start+open+1:start+end], ",")
	if len(args) != len(m.Params) {
		return stmt
	}
	repl := m.Body
	for i, p := range m.Params {
		repl = strings.ReplaceAll(repl, p, strings.TrimSpace(args[i]))
	}
	return strings.ReplaceAll(stmt, stmt[start:start+end+1], repl)
}

func expandStrict(m Macro, stmt string) string {
	if !m.IsFunction() {
		return preprocessor.ReplaceIdents(stmt, map[string]string{m.Name: m.Body})
	}

	var b strings.Builder
	pos := 0
	for {
		i := preprocessor.IndexIdent(stmt, m.Name, pos)
		if i < 0 {
			break
		}
		after := i + len(m.Name)
		open := after + len(stmt[after:]) - len(strings.TrimLeft(stmt[after:], " \t\r\n"))
		n, ok := preprocessor.ScanParenEnd(stmt[open:])
		if !ok {
			b.WriteString(stmt[pos:after])
			pos = after
			continue
		}
		args := preprocessor.SplitArgs(stmt[open+1 : open+n-1])
		if len(args) != len(m.Params) {
			b.WriteString(stmt[pos:after])
			pos = after
			continue
		}
		b.WriteString(stmt[pos:i])
		b.WriteString(substituteParams(m, args))
		pos = open + n
	}
	if pos == 0 {
		return stmt
	}
	b.WriteString(stmt[pos:])
	return b.String()
}

func substituteParams(m Macro, args []string) string {
	repl := make(map[string]string, len(m.Params))
	for i, p := range m.Params {
		if _, dup := repl[p]; !dup {
			repl[p] = args[i]
		}
	}
	return preprocessor.ReplaceIdents(m.Body, repl)
}

// ExpandStatement runs every macro of the catalog over stmt in catalog
// order. Each result feeds the next macro; there is no second sweep.
func (c Catalog) ExpandStatement(stmt string, mode Mode) string {
	for _, m := range c {
		stmt = ExpandMacro(m, stmt, mode)
	}
	return stmt
}

// DefaultSentinel is the marker written in front of neutralized
// conditional directives.
const DefaultSentinel = "//HC "

var conditionalMarkers = []string{"#ifdef ", "#ifndef ", "#if ", "#else ", "#endif "}

// Neutralize prefixes every conditional-compilation marker in line with
// sentinel so the directive reads as a comment. Markers are matched with
// their trailing space, so a bare "#endif" at end of line is left alone.
func Neutralize(line, sentinel string) string {
	for _, marker := range conditionalMarkers {
		line = strings.ReplaceAll(line, marker, sentinel+marker)
	}
	return line
}
