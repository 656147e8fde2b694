package policy

import (
	"regexp"
	"strings"
)

var (
	languageDeletePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\bos\.(?:remove|unlink|rmdir|removedirs)\s*\(`),
		regexp.MustCompile(`\bshutil\.rmtree\s*\(`),
		regexp.MustCompile(`\.unlink\s*\(`),
		regexp.MustCompile(`\bfs(?:\.promises)?\.(?:unlink|rm|rmdir)(?:sync)?\s*\(`),
		regexp.MustCompile(`\bfile\.delete\s*\(`),
		regexp.MustCompile(`\bfileutils\.(?:rm|rm_r|rm_rf|rm_f|remove|remove_dir|remove_entry)\b`),
		regexp.MustCompile(`\bfiles\.delete(?:ifexists)?\s*\(`),
		regexp.MustCompile(`\b(?:perl|php)\b.*\bunlink\b`),
		regexp.MustCompile(`\bpython[23]?\b.*\b(?:unlink|remove|rmtree)\b`),
		regexp.MustCompile(`\bruby\b.*\b(?:unlink|delete)\b`),
	}

	// Empty-output writers whose redirect truncates a file.
	emptyWritePattern = regexp.MustCompile(`(?:\bcat\s+/dev/null|\becho\s+-n|\bprintf\s+(?:''|""))\s*>[^>&]`)

	// Scripts that delete every line: "d" and "1,$d".
	sedDeleteScript = regexp.MustCompile(`^(?:1\s*,\s*\$\s*)?d$`)
)

func deletionDetectors() []Detector {
	return []Detector{
		bashDetector("find-delete-outside-project", CategoryFileDeletion, isFindDeleteOutsideProject),
		bashDetector("unlink", CategoryFileDeletion, func(l *commandLine) bool {
			return l.runs(wordSet("unlink"))
		}),
		patternDetector("language-delete-call", CategoryFileDeletion, languageDeletePatterns...),
		bashDetector("redirect-truncation", CategoryFileDeletion, isBareTruncation),
		bashDetector("truncate-zero", CategoryFileDeletion, isTruncateToZero),
		bashDetector("dev-null-copy", CategoryFileDeletion, isDevNullCopy),
		bashDetector("sed-delete-all", CategoryFileDeletion, isSedInPlaceDelete),
	}
}

// isFindDeleteOutsideProject flags find -delete whose starting points leave
// the working tree. With no starting point find uses ".".
func isFindDeleteOutsideProject(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		if c.name != "find" || !c.hasArg("-delete") {
			return false
		}
		for _, a := range c.args {
			if strings.HasPrefix(a, "-") || a == "(" || a == "!" {
				break
			}
			if findRootOutsideProject(a) {
				return true
			}
		}
		return false
	})
}

func findRootOutsideProject(p string) bool {
	switch {
	case hasParentRef(p), strings.HasPrefix(p, "~"), strings.Contains(p, "$HOME"), strings.Contains(p, "${HOME}"):
		return true
	case strings.HasPrefix(p, "/"):
		return !pathUnder(cleanTarget(p), "/tmp") && !pathUnder(cleanTarget(p), "/var/tmp")
	}
	return false
}

// isBareTruncation flags a simple command whose last redirection overwrites
// a file: "> f", ": > f", "echo > f", "cmd 2> f". Appends (>>), descriptor
// duplication (2>&1) and pseudo-files under /dev, /proc and /sys are not
// truncation. Empty writers redirected anywhere in the line also count.
func isBareTruncation(l *commandLine) bool {
	if emptyWritePattern.MatchString(l.lower) {
		return true
	}
	return l.anyCmd(func(c simpleCommand) bool {
		r, ok := lastRedirect(c.words)
		return ok && r.truncatesFile()
	})
}

type redirect struct {
	op     string // ">", ">>", ">&", "<", "<<", ...
	target string
}

// redirectOps is ordered longest first.
var redirectOps = []string{"<<<", ">>", ">&", ">|", "<<", "<&", "<>", ">", "<"}

// splitRedirect recognises a word that starts a redirection, with an
// optional descriptor ("2>") or "&" ("&>") prefix, and returns the operator
// and any target glued to it.
func splitRedirect(w string) (op, target string, ok bool) {
	if strings.ContainsAny(w, " \t") {
		// quoted text, not an operator
		return "", "", false
	}
	w = strings.TrimPrefix(w, ":")
	rest := strings.TrimLeft(w, "0123456789")
	if rest == w {
		rest = strings.TrimPrefix(w, "&")
	}
	for _, candidate := range redirectOps {
		if strings.HasPrefix(rest, candidate) {
			return candidate, rest[len(candidate):], true
		}
	}
	return "", "", false
}

func lastRedirect(words []string) (redirect, bool) {
	var (
		last  redirect
		found bool
	)
	for i := 0; i < len(words); i++ {
		op, target, ok := splitRedirect(words[i])
		if !ok {
			continue
		}
		if target == "" && i+1 < len(words) {
			i++
			target = words[i]
		}
		last, found = redirect{op: op, target: target}, true
	}
	return last, found
}

func (r redirect) truncatesFile() bool {
	if r.op != ">" && r.op != ">|" {
		return false
	}
	p := cleanTarget(r.target)
	switch {
	case p == "":
		return false
	case pathUnder(p, "/dev"), pathUnder(p, "/proc"), pathUnder(p, "/sys"):
		return false
	}
	return true
}

func isTruncateToZero(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		if c.name != "truncate" {
			return false
		}
		for i, a := range c.args {
			switch {
			case a == "-s0" || a == "--size=0":
				return true
			case (a == "-s" || a == "--size") && i+1 < len(c.args) && c.args[i+1] == "0":
				return true
			}
		}
		return false
	})
}

func isDevNullCopy(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		switch c.name {
		case "dd":
			return c.hasArg("if=/dev/null")
		case "cp":
			ops := c.operands()
			return len(ops) >= 2 && ops[0] == "/dev/null"
		}
		return false
	})
}

// isSedInPlaceDelete flags "sed -i 'd' file", which empties the file.
func isSedInPlaceDelete(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		if c.name != "sed" {
			return false
		}
		inPlace := false
		for _, a := range c.args {
			if strings.HasPrefix(a, "-i") || strings.HasPrefix(a, "--in-place") ||
				(strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") && strings.Contains(a, "i")) {
				inPlace = true
			}
		}
		if !inPlace {
			return false
		}
		for _, a := range c.args {
			if sedDeleteScript.MatchString(strings.TrimSpace(a)) {
				return true
			}
		}
		return false
	})
}
