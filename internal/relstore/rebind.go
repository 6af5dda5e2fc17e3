package relstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the positional placeholder style of the underlying driver.
type Dialect int

const (
	// Postgres renders $1, $2, ... placeholders.
	Postgres Dialect = iota
	// SQLite renders ? placeholders.
	SQLite
)

func isNameStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isNameByte(b byte) bool {
	return isNameStart(b) || (b >= '0' && b <= '9')
}

// Rebind rewrites @name placeholders in text to the dialect's positional form
// and returns the values in placeholder order. Placeholders inside quoted
// strings and quoted identifiers are left untouched. A placeholder with no
// entry in args is an error; the same name may appear more than once.
func Rebind(dialect Dialect, text string, args map[string]any) (string, []any, error) {
	var out strings.Builder
	out.Grow(len(text))
	var values []any
	i := 0
	for i < len(text) {
		switch text[i] {
		case '\'', '"':
			end, err := skipQuoted(text, i)
			if err != nil {
				return "", nil, err
			}
			out.WriteString(text[i:end])
			i = end
		case '@':
			if i+1 >= len(text) || !isNameStart(text[i+1]) {
				out.WriteByte('@')
				i++
				continue
			}
			j := i + 1
			for j < len(text) && isNameByte(text[j]) {
				j++
			}
			name := text[i+1 : j]
			value, ok := args[name]
			if !ok {
				return "", nil, fmt.Errorf("rebind: no value for placeholder @%s", name)
			}
			values = append(values, value)
			if dialect == SQLite {
				out.WriteByte('?')
			} else {
				out.WriteString("$" + strconv.Itoa(len(values)))
			}
			i = j
		default:
			out.WriteByte(text[i])
			i++
		}
	}
	return out.String(), values, nil
}

// skipQuoted returns the index just past the quoted region starting at start.
// Doubled quote characters escape themselves, as in SQL.
func skipQuoted(text string, start int) (int, error) {
	quote := text[start]
	i := start + 1
	for i < len(text) {
		if text[i] != quote {
			i++
			continue
		}
		if i+1 < len(text) && text[i+1] == quote {
			i += 2
			continue
		}
		return i + 1, nil
	}
	return 0, fmt.Errorf("rebind: unterminated %c-quoted region", quote)
}
