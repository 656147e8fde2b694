package policy

import (
	"regexp"
	"strings"
)

var (
	forkBombPatterns = []*regexp.Regexp{
		// :(){ :|:& };: with any spacing
		regexp.MustCompile(`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
		regexp.MustCompile(`\$0\s*[&|]\s*\$0`),
		regexp.MustCompile(`\.\s*\$0\s*\|`),
		regexp.MustCompile(`(?i)\bfork\s*(?:while|for)\s*fork\b`),
		regexp.MustCompile(`(?i)\bwhile\b.*:.*\bfork\s*\(\)`),
		regexp.MustCompile(`(?i)\bwhile\s*\(?\s*(?:1|true)\s*\)?\s*\{?.*\bfork\s*\(\)`),
		regexp.MustCompile(`(?i)\bos\.fork\s*\(\).*\bwhile\b`),
		regexp.MustCompile(`(?i)\bfork\s*\(\).*\bfork\s*\(\)`),
		regexp.MustCompile(`(?i)\bfork\W*bomb`),
	}

	// name(){ name|name& } for any function name; the names are compared in code.
	functionBomb = regexp.MustCompile(`([\w:.]+)\s*\(\s*\)\s*\{\s*([\w:.]+)\s*\|\s*([\w:.]+)\s*&`)

	forkWord = regexp.MustCompile(`(?i)\bfork\b`)
)

const (
	maxBackgroundJobs = 10
	maxForkMentions   = 3
)

func forkBombDetectors() []Detector {
	return []Detector{
		bashDetector("fork-bomb", CategoryForkBomb, func(l *commandLine) bool {
			compact := strings.Join(strings.Fields(l.raw), "")
			return matchAny(l.raw, forkBombPatterns) ||
				strings.Contains(compact, ":(){:|:&};:") ||
				strings.Contains(compact, "$0&$0&") ||
				isFunctionBomb(l.raw)
		}),
		bashDetector("process-flood", CategoryForkBomb, func(l *commandLine) bool {
			return countBackgroundJobs(l.raw) > maxBackgroundJobs ||
				len(forkWord.FindAllStringIndex(l.raw, -1)) > maxForkMentions
		}),
	}
}

// isFunctionBomb finds a function whose body pipes itself into itself in
// the background.
func isFunctionBomb(s string) bool {
	for _, m := range functionBomb.FindAllStringSubmatch(s, -1) {
		if m[1] == m[2] && m[2] == m[3] {
			return true
		}
	}
	return false
}

// countBackgroundJobs counts lone "&" operators, skipping "&&", "&>", ">&"
// and "|&".
func countBackgroundJobs(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '&' {
			continue
		}
		if i+1 < len(s) && (s[i+1] == '&' || s[i+1] == '>') {
			i++
			continue
		}
		if i > 0 && (s[i-1] == '>' || s[i-1] == '<' || s[i-1] == '|') {
			continue
		}
		n++
	}
	return n
}
