package policy

import "regexp"

// bashDetector adapts a predicate over one command text to a Bash detector
// that fires on the command or its unwrapped inner command.
func bashDetector(id string, cat Category, fn func(*commandLine) bool) Detector {
	return Detector{
		ID:       id,
		Category: cat,
		Scope:    BashOnly,
		Match: func(s *Subject) bool {
			return s.anyLine(fn)
		},
	}
}

// patternDetector fires when any pattern matches the lowercased command.
func patternDetector(id string, cat Category, patterns ...*regexp.Regexp) Detector {
	return bashDetector(id, cat, func(l *commandLine) bool {
		return matchAny(l.lower, patterns)
	})
}

func matchAny(s string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
