package preprocessor

import "strings"

func IsIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func IsIdentPart(b byte) bool {
	return IsIdentStart(b) || (b >= '0' && b <= '9')
}

// IndexIdent returns the index of the first occurrence of name in s at or
// after from that is not part of a longer identifier, or -1.
func IndexIdent(s, name string, from int) int {
	if name == "" {
		return -1
	}
	for from <= len(s)-len(name) {
		i := strings.Index(s[from:], name)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(name)
		if (i == 0 || !IsIdentPart(s[i-1])) && (end == len(s) || !IsIdentPart(s[end])) {
			return i
		}
		from = i + 1
	}
	return -1
}

// ScanParenEnd expects s to start with '(' and returns the index just past
// the matching ')'. Quoted strings and character literals are skipped.
func ScanParenEnd(s string) (int, bool) {
	if s == "" || s[0] != '(' {
		return 0, false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '(' {
			depth++
		} else if ch == ')' {
			depth--
			if depth == 0 {
				return i + 1, true
			}
		} else if ch == '"' || ch == '\'' {
			i = skipQuoted(s, i)
		}
	}
	return 0, false
}

// SplitArgs splits the inside of a parenthesized argument list at top-level
// commas and trims each argument. An all-blank list yields no arguments.
func SplitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	var args []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '"', '\'':
			i = skipQuoted(s, i)
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}

// skipQuoted returns the index of the closing quote matching s[i], or the
// last index of s if the literal is unterminated.
func skipQuoted(s string, i int) int {
	quote := s[i]
	for i++; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return len(s) - 1
}

// ReplaceIdents substitutes whole identifiers found in repl. String and
// character literals and comments are copied through untouched; a line
// comment covers only the rest of its line.
func ReplaceIdents(s string, repl map[string]string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		ch := s[i]
		if ch == '"' || ch == '\'' {
			j := skipQuoted(s, i) + 1
			b.WriteString(s[i:j])
			i = j
			continue
		}
		if ch == '/' && i+1 < len(s) && s[i+1] == '/' {
			// a line comment ends at the newline; statements span lines
			j := strings.IndexByte(s[i:], '\n')
			if j < 0 {
				b.WriteString(s[i:])
				break
			}
			b.WriteString(s[i : i+j])
			i += j
			continue
		}
		if ch == '/' && i+1 < len(s) && s[i+1] == '*' {
			j := strings.Index(s[i+2:], "*/")
			if j < 0 {
				b.WriteString(s[i:])
				break
			}
			j += i + 4
			b.WriteString(s[i:j])
			i = j
			continue
		}
		if IsIdentStart(ch) {
			j := i + 1
			for j < len(s) && IsIdentPart(s[j]) {
				j++
			}
			name := s[i:j]
			if val, ok := repl[name]; ok {
				b.WriteString(val)
			} else {
				b.WriteString(name)
			}
			i = j
			continue
		}
		if ch >= '0' && ch <= '9' {
			// numeric literals such as 0x1Fu never contain identifiers
			j := i + 1
			for j < len(s) && (IsIdentPart(s[j]) || s[j] == '.') {
				j++
			}
			b.WriteString(s[i:j])
			i = j
			continue
		}
		b.WriteByte(ch)
		i++
	}
	return b.String()
}
