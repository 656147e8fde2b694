package policy

import (
	"regexp"
	"strings"

	"github.com/gzhole/toolgate/internal/shellwords"
)

// commandLine is one shell command text prepared for detection.
type commandLine struct {
	raw   string
	lower string
	cmds  []simpleCommand
}

// simpleCommand is one program invocation with launchers such as sudo
// already peeled off.
type simpleCommand struct {
	name  string   // lowercase base name of the program
	args  []string // arguments as written
	words []string // every token of the segment, launchers included
}

func parseCommandLine(text string) *commandLine {
	l := &commandLine{raw: text, lower: strings.ToLower(text)}
	for _, seg := range shellwords.Commands(text) {
		l.cmds = append(l.cmds, newSimpleCommand(seg))
	}
	return l
}

// launchers run the command that follows them.
var launchers = map[string]bool{
	"sudo": true, "doas": true, "env": true, "nohup": true, "time": true,
	"nice": true, "ionice": true, "exec": true, "xargs": true, "command": true,
	"builtin": true, "stdbuf": true, "timeout": true, "then": true, "do": true,
	"else": true, "!": true,
}

// launcherValueFlags lists launcher options that consume the next word
// ("sudo -u root", "nice -n 10").
var launcherValueFlags = map[string]map[string]bool{
	"sudo":    wordSet("-u", "-g", "-C", "-p", "-U", "-h", "-r", "-t", "-D"),
	"doas":    wordSet("-u", "-C"),
	"env":     wordSet("-u", "-C", "-S"),
	"nice":    wordSet("-n"),
	"ionice":  wordSet("-c", "-n", "-p"),
	"timeout": wordSet("-k", "-s"),
	"xargs":   wordSet("-I", "-L", "-n", "-P", "-d", "-s", "-E", "-a"),
	"stdbuf":  wordSet("-i", "-o", "-e"),
}

func newSimpleCommand(words []string) simpleCommand {
	i := 0
	for i < len(words) {
		w := words[i]
		switch {
		case isAssignment(w):
			i++
		case launchers[strings.ToLower(shellwords.Base(w))]:
			launcher := strings.ToLower(shellwords.Base(w))
			i++
			for i < len(words) && strings.HasPrefix(words[i], "-") && len(words[i]) > 1 {
				if launcherValueFlags[launcher][words[i]] && i+1 < len(words) {
					i++
				}
				i++
			}
			if launcher == "timeout" && i < len(words) {
				i++
			}
			if launcher == "xargs" {
				for i < len(words) && isAssignment(words[i]) {
					i++
				}
			}
		default:
			return simpleCommand{
				name:  strings.ToLower(shellwords.Base(w)),
				args:  words[i+1:],
				words: words,
			}
		}
	}
	return simpleCommand{words: words}
}

// isAssignment reports a VAR=value prefix.
func isAssignment(w string) bool {
	eq := strings.IndexByte(w, '=')
	if eq <= 0 {
		return false
	}
	for i, r := range w[:eq] {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

// hasWord reports whether any token of the segment is one of names, compared
// by lowercase base name. It finds programs used as arguments as in
// "find . -exec cat {}" or "xargs cat".
func (c simpleCommand) hasWord(names map[string]bool) bool {
	for _, w := range c.words {
		if names[strings.ToLower(shellwords.Base(w))] {
			return true
		}
	}
	return false
}

func (c simpleCommand) hasArg(args ...string) bool {
	for _, a := range c.args {
		for _, want := range args {
			if a == want {
				return true
			}
		}
	}
	return false
}

// operands returns arguments that are not flags, stopping flag parsing at "--".
func (c simpleCommand) operands() []string {
	var out []string
	flags := true
	for _, a := range c.args {
		if flags && a == "--" {
			flags = false
			continue
		}
		if flags && strings.HasPrefix(a, "-") && len(a) > 1 {
			continue
		}
		out = append(out, a)
	}
	return out
}

// hasShortOrLong reports a short flag letter (possibly clustered, "-Rv") or
// one of the long spellings.
func (c simpleCommand) hasShortOrLong(short string, long ...string) bool {
	for _, a := range c.args {
		if a == "--" {
			return false
		}
		if strings.HasPrefix(a, "--") {
			for _, l := range long {
				if a == l {
					return true
				}
			}
			continue
		}
		if strings.HasPrefix(a, "-") && len(a) > 1 && strings.ContainsAny(a[1:], short) {
			return true
		}
	}
	return false
}

func (l *commandLine) anyCmd(fn func(simpleCommand) bool) bool {
	for _, c := range l.cmds {
		if fn(c) {
			return true
		}
	}
	return false
}

func (l *commandLine) runs(names map[string]bool) bool {
	return l.anyCmd(func(c simpleCommand) bool { return names[c.name] })
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

const (
	cmdStart    = "(?:^|[;&|({`\\n]|\\$\\()\\s*"
	cmdLaunch   = `(?:(?:sudo|doas|env|nohup|time|nice|ionice|exec|xargs|command|builtin|stdbuf|then|do|else|!)(?:\s+-\S+(?:\s+[^-\s]\S*)?)*\s+|timeout\s+(?:-\S+\s+)*\S+\s+|[A-Za-z_]\w*=\S*\s+)*`
	cmdDir      = `(?:[\w.~/-]*/)?`
	cmdBoundary = "(?:\\s|$|[;&|)`])"
)

// commandRe matches any of names (regular expressions) where a shell
// expects a program name: at the start of a command, after a control
// operator or subshell opener, behind launchers like sudo, with an optional
// directory prefix.
func commandRe(names ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)` + cmdStart + cmdLaunch + cmdDir + `(?:` + strings.Join(names, "|") + `)` + cmdBoundary)
}

// pathUnder reports whether p is dir or inside it.
func pathUnder(p, dir string) bool {
	return p == dir || strings.HasPrefix(p, dir+"/")
}

// isHomeRef reports references to the user's home directory.
func isHomeRef(p string) bool {
	return p == "~" || strings.HasPrefix(p, "~/") ||
		strings.HasPrefix(p, "$HOME") || strings.HasPrefix(p, "${HOME}")
}

// hasParentRef reports a ".." path component.
func hasParentRef(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

// cleanTarget trims trailing slashes, keeping "/" itself.
func cleanTarget(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" && p != "" {
		return "/"
	}
	return trimmed
}
