package policy

import (
	"regexp"
	"strings"

	"github.com/gzhole/toolgate/internal/invocation"
)

var (
	// Text that mentions ".env" without being an env file.
	envExemptions = regexp.MustCompile(`(?i)\.env\.sample|\bprocess\.env\b|\bimport\.meta\.env\b`)

	envFileRef = regexp.MustCompile(`(?i)\.env\b`)

	envRedirect = regexp.MustCompile(`(?i)>\s*\S*\.env\b`)

	envTaskPhrase = regexp.MustCompile(`(?i)\b(?:env|environment)\s+(?:files?|variables?|vars?|secrets?)\b|\bdotenv\b`)

	envVerbs = wordSet(
		"cat", "less", "more", "head", "tail", "bat", "tac", "nl", "touch", "cp", "mv",
		"ls", "find", "grep", "egrep", "fgrep", "rg", "ag", "source", ".", "vi", "vim",
		"nvim", "nano", "emacs", "code", "awk", "sed", "cut", "tee", "strings", "base64",
		"xxd", "od", "diff", "sort", "uniq", "wc", "ln", "rsync", "scp", "tar", "zip",
	)
)

// mentionsEnvFile reports a ".env" style file name, ignoring .env.sample and
// JavaScript's process.env / import.meta.env.
func mentionsEnvFile(s string) bool {
	if s == "" {
		return false
	}
	return envFileRef.MatchString(envExemptions.ReplaceAllString(s, " "))
}

func envDetectors() []Detector {
	return []Detector{
		{
			ID:       "env-file-path",
			Category: CategoryEnvFileAccess,
			Scope:    AllTools,
			Match:    matchEnvFields,
		},
		bashDetector("env-file-command", CategoryEnvFileAccess, isEnvFileCommand),
	}
}

func matchEnvFields(s *Subject) bool {
	v := s.View
	switch v.Kind {
	case invocation.KindFile:
		return mentionsEnvFile(v.FilePath)
	case invocation.KindGlob:
		return mentionsEnvFile(v.Pattern)
	case invocation.KindGrep:
		return mentionsEnvFile(v.Pattern) || mentionsEnvFile(v.Glob) || mentionsEnvFile(v.Path)
	case invocation.KindLS:
		return mentionsEnvFile(v.Path)
	case invocation.KindTask:
		for _, text := range []string{v.Prompt, v.Description} {
			if mentionsEnvFile(text) || envTaskPhrase.MatchString(text) {
				return true
			}
		}
	}
	return false
}

// isEnvFileCommand flags commands that read, write, copy, list or search an
// env file, or redirect output into one.
func isEnvFileCommand(l *commandLine) bool {
	stripped := envExemptions.ReplaceAllString(l.raw, " ")
	if envRedirect.MatchString(stripped) {
		return true
	}
	return l.anyCmd(func(c simpleCommand) bool {
		if !c.hasWord(envVerbs) && !envVerbs[c.name] {
			return false
		}
		for _, w := range c.words {
			if mentionsEnvFile(w) && !strings.HasPrefix(w, "-") {
				return true
			}
			if strings.HasPrefix(w, "-") && strings.Contains(w, "=") && mentionsEnvFile(w[strings.Index(w, "=")+1:]) {
				return true
			}
		}
		return false
	})
}
