package shellwords

import "strings"

// controlOperators end a simple command when they appear as a whole token.
var controlOperators = map[string]bool{
	";":          true,
	";;":         true,
	"&&":         true,
	"||":         true,
	"|":          true,
	"|&":         true,
	"&":          true,
	newlineToken: true,
}

// Commands splits s into simple commands: each element is the token list of
// one command, cut at control operators and line breaks. Grouping characters
// glued to words ("(rm", "$(curl", "x)") are trimmed so the first element of
// every command is the program name as written.
func Commands(s string) [][]string {
	return Segments(split(s, true))
}

// Segments groups an already tokenized command into simple commands.
func Segments(tokens []string) [][]string {
	var (
		out     [][]string
		current []string
	)

	end := func() {
		if len(current) > 0 {
			out = append(out, current)
			current = nil
		}
	}

	for _, tok := range tokens {
		if controlOperators[tok] {
			end()
			continue
		}

		word, terminated := trimOperators(tok)
		if word != "" {
			current = append(current, word)
		}
		if terminated {
			end()
		}
	}
	end()

	return out
}

// trimOperators strips grouping punctuation around a word and reports whether
// the word carried a trailing command terminator such as "/;" or "x&".
func trimOperators(tok string) (string, bool) {
	word := tok
	for word != "" {
		if strings.HasPrefix(word, "$(") {
			word = word[2:]
			continue
		}
		if strings.ContainsRune("({`", rune(word[0])) {
			word = word[1:]
			continue
		}
		break
	}

	terminated := false
	for len(word) > 0 {
		last := word[len(word)-1]
		switch last {
		case ';', '&', '|':
			terminated = true
			word = word[:len(word)-1]
		case ')', '}', '`':
			word = word[:len(word)-1]
		default:
			return word, terminated
		}
	}
	return word, terminated
}

// Base returns the program name of a command word, dropping any directory
// prefix and a leading backslash used to bypass aliases ("/bin/rm", "\rm").
func Base(word string) string {
	word = strings.TrimPrefix(word, `\`)
	if i := strings.LastIndex(word, "/"); i >= 0 && i < len(word)-1 {
		return word[i+1:]
	}
	return word
}
