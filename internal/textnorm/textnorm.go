// Package textnorm canonicalizes attacker-controlled text before pattern
// matching: characters that render as nothing, reorder the display, or merely
// look like ASCII letters are removed or folded so that "r\u200bm -rf /" and
// "ｒｍ -rf /" reach the detectors as "rm -rf /".
package textnorm

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Finding records one suspicious rune removed or rewritten by Canonical.
type Finding struct {
	Kind      string // zero-width, bidi-override, tag-char, control-char, invalid-utf8, homoglyph
	Position  int    // byte offset in the input
	Codepoint string // e.g. "U+200B"
}

// Canonical returns s with invisible and control characters removed,
// compatibility forms folded by NFKC, and Cyrillic/Greek look-alikes mapped to
// the Latin letters they imitate. Tab, newline and carriage return survive.
// Pure ASCII input is returned unchanged.
func Canonical(s string) string {
	if isASCIIPrintable(s) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			continue
		}
		if hidden(r) {
			continue
		}
		sb.WriteRune(r)
	}

	folded := norm.NFKC.String(sb.String())
	return strings.Map(foldHomoglyph, folded)
}

// Inspect reports the runes Canonical would strip or fold. The engine logs
// these at debug level; they never influence the decision on their own.
func Inspect(s string) []Finding {
	var findings []Finding
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		pos := i
		i += size

		kind := ""
		switch {
		case r == utf8.RuneError && size == 1:
			findings = append(findings, Finding{Kind: "invalid-utf8", Position: pos, Codepoint: fmt.Sprintf("0x%02X", s[pos])})
			continue
		case isZeroWidth(r):
			kind = "zero-width"
		case isBidiOverride(r):
			kind = "bidi-override"
		case isTagCharacter(r):
			kind = "tag-char"
		case isUnsafeControl(r):
			kind = "control-char"
		case foldHomoglyph(r) != r:
			kind = "homoglyph"
		default:
			continue
		}
		findings = append(findings, Finding{Kind: kind, Position: pos, Codepoint: fmt.Sprintf("U+%04X", r)})
	}
	return findings
}

func isASCIIPrintable(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= utf8.RuneSelf {
			return false
		}
		if (c < 0x20 && c != '\t' && c != '\n' && c != '\r') || c == 0x7F {
			return false
		}
	}
	return true
}

func hidden(r rune) bool {
	return isZeroWidth(r) || isBidiOverride(r) || isTagCharacter(r) || isUnsafeControl(r)
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', // ZERO WIDTH SPACE
		'\u200C', // ZERO WIDTH NON-JOINER
		'\u200D', // ZERO WIDTH JOINER
		'\uFEFF', // BOM
		'\u2060', // WORD JOINER
		'\u180E', // MONGOLIAN VOWEL SEPARATOR
		'\u200E', // LEFT-TO-RIGHT MARK
		'\u200F', // RIGHT-TO-LEFT MARK
		'\u00AD': // SOFT HYPHEN
		return true
	}
	return false
}

func isBidiOverride(r rune) bool {
	return (r >= '\u202A' && r <= '\u202E') || (r >= '\u2066' && r <= '\u2069')
}

func isTagCharacter(r rune) bool {
	return r >= 0xE0001 && r <= 0xE007F
}

func isUnsafeControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return r <= 0x1F || r == 0x7F || (r >= 0x80 && r <= 0x9F)
}

func foldHomoglyph(r rune) rune {
	if r < utf8.RuneSelf {
		return r
	}
	if unicode.Is(unicode.Cyrillic, r) {
		if l, ok := cyrillicHomoglyphs[r]; ok {
			return l
		}
	}
	if unicode.Is(unicode.Greek, r) {
		if l, ok := greekHomoglyphs[r]; ok {
			return l
		}
	}
	return r
}

var cyrillicHomoglyphs = map[rune]rune{
	'а': 'a', 'А': 'A', 'В': 'B', 'с': 'c', 'С': 'C', 'е': 'e', 'Е': 'E',
	'Н': 'H', 'і': 'i', 'І': 'I', 'ј': 'j', 'К': 'K', 'М': 'M', 'о': 'o',
	'О': 'O', 'р': 'p', 'Р': 'P', 'ѕ': 's', 'Ѕ': 'S', 'Т': 'T', 'х': 'x',
	'Х': 'X', 'у': 'y', 'У': 'Y', 'һ': 'h', 'ԁ': 'd',
}

var greekHomoglyphs = map[rune]rune{
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Η': 'H', 'Ι': 'I', 'Κ': 'K', 'Μ': 'M',
	'Ν': 'N', 'Ο': 'O', 'ο': 'o', 'Ρ': 'P', 'Τ': 'T', 'Χ': 'X', 'Υ': 'Y',
	'Ζ': 'Z', 'ν': 'v', 'ι': 'i',
}
