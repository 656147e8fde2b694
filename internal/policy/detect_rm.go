package policy

import (
	"strings"

	"github.com/gzhole/toolgate/internal/shellwords"
)

// rmCurrentDir names the working directory itself.
var rmCurrentDir = wordSet(".", "./")

func rmDetectors() []Detector {
	return []Detector{
		bashDetector("rm-recursive-force", CategoryRmCommand, isRecursiveForceRm),
		bashDetector("rm-recursive-dangerous-target", CategoryRmCommand, isRecursiveRmOfDangerousTarget),
		{
			ID:       "rm-indirect",
			Category: CategoryIndirectRm,
			Scope:    BashOnly,
			Match: func(s *Subject) bool {
				return s.Resolution.InnerRemoves || s.Resolution.ScriptRemoves
			},
		},
	}
}

// rmInvocation is an rm found anywhere in a segment, including as the
// argument of find -exec or xargs.
type rmInvocation struct {
	recursive bool
	force     bool
	targets   []string
}

func findRm(l *commandLine) []rmInvocation {
	var found []rmInvocation
	for _, c := range l.cmds {
		for i, w := range c.words {
			if strings.ToLower(shellwords.Base(w)) != "rm" {
				continue
			}
			found = append(found, parseRmArgs(c.words[i+1:]))
		}
	}
	return found
}

func parseRmArgs(args []string) rmInvocation {
	var inv rmInvocation
	flags := true
	for _, a := range args {
		switch {
		case flags && a == "--":
			flags = false
		case flags && (a == "--recursive"):
			inv.recursive = true
		case flags && (a == "--force"):
			inv.force = true
		case flags && strings.HasPrefix(a, "--"):
		case flags && strings.HasPrefix(a, "-") && len(a) > 1:
			cluster := a[1:]
			if strings.ContainsAny(cluster, "rR") {
				inv.recursive = true
			}
			if strings.ContainsAny(cluster, "fF") {
				inv.force = true
			}
		default:
			inv.targets = append(inv.targets, a)
		}
	}
	return inv
}

func isRecursiveForceRm(l *commandLine) bool {
	for _, rm := range findRm(l) {
		if rm.recursive && rm.force {
			return true
		}
	}
	return false
}

func isRecursiveRmOfDangerousTarget(l *commandLine) bool {
	for _, rm := range findRm(l) {
		if !rm.recursive {
			continue
		}
		for _, t := range rm.targets {
			if isDangerousRmTarget(t) {
				return true
			}
		}
	}
	return false
}

// isDangerousRmTarget reports operands a recursive rm must not touch: the
// working directory, anything under home, parent references, globs, and
// absolute paths outside the temp directories.
func isDangerousRmTarget(t string) bool {
	switch {
	case rmCurrentDir[t], hasParentRef(t), strings.Contains(t, "*"):
		return true
	case strings.HasPrefix(t, "~"), strings.HasPrefix(t, "$HOME"), strings.HasPrefix(t, "${HOME}"):
		return true
	case strings.HasPrefix(t, "/"):
		p := cleanTarget(t)
		return !pathUnder(p, "/tmp") && !pathUnder(p, "/var/tmp")
	}
	return false
}
