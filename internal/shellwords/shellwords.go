// Package shellwords splits shell command text into argv-like tokens.
//
// The splitter is deliberately simpler than a real shell: single and double
// quotes behave the same way (both group text until the matching quote of the
// same kind), a backslash escapes the next character everywhere, and an
// unterminated quote swallows the rest of the input. It never fails.
package shellwords

import "strings"

// newlineToken marks an unquoted line break in the output of splitLines.
const newlineToken = "\n"

// Split tokenizes s. Space, tab and line breaks separate tokens outside
// quotes. Adjacent quoted and unquoted parts join into one token, and an
// empty quoted string ("" or '') yields an empty token.
func Split(s string) []string {
	return split(s, false)
}

func split(s string, keepNewlines bool) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		started bool
	)

	flush := func() {
		if started {
			tokens = append(tokens, current.String())
			current.Reset()
			started = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case r == '\\':
			started = true
			if i+1 < len(runes) {
				i++
				current.WriteRune(runes[i])
			} else {
				current.WriteRune(r)
			}

		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}

		case r == '\'' || r == '"':
			quote = r
			started = true

		case r == ' ' || r == '\t' || r == '\r':
			flush()

		case r == '\n':
			flush()
			if keepNewlines {
				tokens = append(tokens, newlineToken)
			}

		default:
			started = true
			current.WriteRune(r)
		}
	}
	flush()

	return tokens
}

// Join rebuilds command text from tokens, separating them with one space.
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}
