// Package preprocessor holds the text-level helpers shared by the macro
// catalog and the expansion engine: header scanning with continuation
// joining, and identifier-aware scanning for strict expansion.
package preprocessor

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultPrefix selects every #define line.
const DefaultPrefix = "#define"

type lineReader struct {
	r *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

func (lr *lineReader) next() (line string, ok bool, err error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, err
	}
	if len(s) == 0 && err == io.EOF {
		return "", false, nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r"), true, nil
}

// ScanDefinitions collects the definitions in r whose trimmed first line
// starts with prefix. Backslash continuations are followed; each physical
// line is trimmed, its continuation backslash removed, and the pieces are
// joined with newlines. A definition still open at EOF is kept.
func ScanDefinitions(r io.Reader, prefix string) ([]string, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	lr := newLineReader(r)

	var defs []string
	var cur strings.Builder
	inDef := false
	for {
		line, ok, err := lr.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		trim := strings.TrimSpace(line)
		if !inDef {
			if !strings.HasPrefix(trim, prefix) {
				continue
			}
			cur.Reset()
		} else {
			cur.WriteByte('\n')
		}
		if lineContinues(trim) {
			cur.WriteString(stripLineContinuation(trim))
			inDef = true
			continue
		}
		cur.WriteString(trim)
		defs = append(defs, cur.String())
		inDef = false
	}
	if inDef {
		defs = append(defs, cur.String())
	}
	return defs, nil
}

// ScanFile opens path and runs ScanDefinitions over it.
func ScanFile(path, prefix string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	defs, err := ScanDefinitions(f, prefix)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return defs, nil
}

func lineContinues(s string) bool {
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return r != ' ' && r != '\t'
	})
	return i >= 0 && s[i] == '\\'
}

func stripLineContinuation(s string) string {
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return r != ' ' && r != '\t'
	})
	if i >= 0 && s[i] == '\\' {
		return strings.TrimRight(s[:i], " \t")
	}
	return s
}
