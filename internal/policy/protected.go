package policy

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/gzhole/toolgate/internal/invocation"
)

// PathSet is a compiled list of operator-configured protected path globs.
// It extends the built-in sensitive catalogue and is immutable once built.
type PathSet struct {
	globs   []glob.Glob
	raw     []string
	homeDir string
}

// NewPathSet compiles patterns such as "~/work/secrets/**" or "/srv/*.db".
// A leading "~" expands to homeDir.
func NewPathSet(patterns []string, homeDir string) (*PathSet, error) {
	ps := &PathSet{homeDir: homeDir}
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		g, err := glob.Compile(ps.expand(p), '/')
		if err != nil {
			return nil, fmt.Errorf("protected path %q: %w", p, err)
		}
		ps.globs = append(ps.globs, g)
		ps.raw = append(ps.raw, p)
	}
	return ps, nil
}

// Empty reports whether the set has no patterns.
func (ps *PathSet) Empty() bool {
	return ps == nil || len(ps.globs) == 0
}

// Patterns returns the configured patterns as written.
func (ps *PathSet) Patterns() []string {
	if ps == nil {
		return nil
	}
	return append([]string(nil), ps.raw...)
}

// Match reports whether path, after "~" expansion, is protected.
func (ps *PathSet) Match(path string) bool {
	if ps.Empty() || path == "" {
		return false
	}
	p := filepath.ToSlash(ps.expand(path))
	for _, g := range ps.globs {
		if g.Match(p) {
			return true
		}
	}
	return false
}

func (ps *PathSet) expand(path string) string {
	if ps.homeDir == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(ps.homeDir, path[2:])
	}
	if path == "~" {
		return ps.homeDir
	}
	for _, v := range []string{"$HOME", "${HOME}"} {
		if strings.HasPrefix(path, v) {
			return ps.homeDir + path[len(v):]
		}
	}
	return path
}

func (ps *PathSet) matchSubject(s *Subject) bool {
	v := s.View
	switch v.Kind {
	case invocation.KindFile:
		return ps.Match(v.FilePath)
	case invocation.KindGlob:
		return ps.Match(v.Pattern)
	case invocation.KindGrep:
		return ps.Match(v.Path)
	case invocation.KindLS:
		return ps.Match(v.Path)
	case invocation.KindBash:
		return s.anyLine(func(l *commandLine) bool {
			return l.anyCmd(func(c simpleCommand) bool {
				for _, w := range c.args {
					if ps.Match(strings.TrimLeft(w, "<>")) {
						return true
					}
				}
				return false
			})
		})
	}
	return false
}
