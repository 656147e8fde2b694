package policy

import "strings"

var dangerousModes = wordSet(
	"000", "0000", "777", "0777", "666", "0666",
	"a+rwx", "ugo+rwx", "a=rwx", "ugo=rwx", "a+rw", "a=rw",
)

// systemDirs are trees whose ownership must not change recursively.
var systemDirs = []string{
	"/etc", "/usr", "/bin", "/sbin", "/lib", "/lib32", "/lib64", "/boot", "/dev",
	"/proc", "/sys", "/opt", "/root", "/var", "/srv", "/System", "/Library",
}

func permissionDetectors() []Detector {
	return []Detector{
		bashDetector("chmod-recursive-open", CategoryPermissionOperation, isDangerousChmod),
		bashDetector("chown-recursive-system", CategoryPermissionOperation, isDangerousChown),
		bashDetector("chgrp-recursive", CategoryPermissionOperation, func(l *commandLine) bool {
			return l.anyCmd(func(c simpleCommand) bool {
				return c.name == "chgrp" && c.hasShortOrLong("R", "--recursive")
			})
		}),
	}
}

// isDangerousChmod flags recursive chmod to 000, 666 or 777 on the root,
// a parent directory, the home directory or an absolute path outside the
// temporary and per-user trees.
func isDangerousChmod(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		if c.name != "chmod" || !c.hasShortOrLong("R", "--recursive") {
			return false
		}
		ops := c.operands()
		if len(ops) < 2 || !dangerousModes[strings.ToLower(ops[0])] {
			return false
		}
		for _, t := range ops[1:] {
			if chmodTargetUnsafe(t) {
				return true
			}
		}
		return false
	})
}

func chmodTargetUnsafe(t string) bool {
	switch {
	case hasParentRef(t), isHomeRef(t), strings.HasPrefix(t, "$"):
		return true
	case strings.HasPrefix(t, "/"):
		p := cleanTarget(t)
		if p == "/" || p == "/home" {
			return true
		}
		return !pathUnder(p, "/tmp") && !pathUnder(p, "/var/tmp") && !strings.HasPrefix(p, "/home/")
	}
	return false
}

// isDangerousChown flags recursive chown of system trees, parent
// directories or the home directory, and handing /home to root.
func isDangerousChown(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		if c.name != "chown" {
			return false
		}
		ops := c.operands()
		if len(ops) < 2 {
			return false
		}
		owner, targets := strings.ToLower(ops[0]), ops[1:]
		if owner == "root" || strings.HasPrefix(owner, "root:") || strings.HasPrefix(owner, "root.") {
			for _, t := range targets {
				if pathUnder(cleanTarget(t), "/home") {
					return true
				}
			}
		}
		if !c.hasShortOrLong("R", "--recursive") {
			return false
		}
		for _, t := range targets {
			if hasParentRef(t) || isHomeRef(t) {
				return true
			}
			p := cleanTarget(t)
			if p == "/" {
				return true
			}
			for _, dir := range systemDirs {
				if pathUnder(p, dir) {
					return true
				}
			}
		}
		return false
	})
}
