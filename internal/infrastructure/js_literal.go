package infrastructure

import (
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// extractLiteral returns the object or array literal assigned right after marker,
// e.g. `window.masterPlaylist = { ... }`. Braces inside strings are ignored.
func extractLiteral(src, marker string, open, close byte) (string, bool) {
	idx := strings.Index(src, marker)
	if idx < 0 {
		return "", false
	}
	rest := src[idx+len(marker):]

	eq := strings.IndexByte(rest, '=')
	if eq < 0 {
		return "", false
	}
	rest = strings.TrimLeft(rest[eq+1:], " \t\r\n")
	if rest == "" || rest[0] != open {
		return "", false
	}

	depth := 0
	var quote byte
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return rest[:i+1], true
			}
		}
	}
	return "", false
}

// decodeJSLiteral decodes an object or array literal as JSON5, which covers
// bare keys, single-quoted strings, trailing commas and comments.
func decodeJSLiteral(lit string, v interface{}) error {
	return json5.Unmarshal([]byte(lit), v)
}
