package invocation

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the closed set of tool shapes the gate understands. A tool name is
// mapped to a Kind by a Catalogue; the Kind decides which input keys matter.
type Kind int

const (
	KindUnknown Kind = iota
	KindBash
	KindFile
	KindGlob
	KindGrep
	KindLS
	KindTask
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	KindBash:    "bash",
	KindFile:    "file",
	KindGlob:    "glob",
	KindGrep:    "grep",
	KindLS:      "ls",
	KindTask:    "task",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a configuration name ("bash", "file", ...) to a Kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name && k != KindUnknown {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown tool kind %q (valid: bash, file, glob, grep, ls, task)", name)
}

// Catalogue maps host tool names to kinds. Names are case-sensitive, matching
// what the host runtime sends in tool_name.
type Catalogue map[string]Kind

// DefaultCatalogue returns the built-in tool catalogue.
func DefaultCatalogue() Catalogue {
	return Catalogue{
		"Bash":      KindBash,
		"Read":      KindFile,
		"Edit":      KindFile,
		"MultiEdit": KindFile,
		"Write":     KindFile,
		"Glob":      KindGlob,
		"Grep":      KindGrep,
		"LS":        KindLS,
		"Task":      KindTask,
	}
}

// With returns a copy of c extended by extra (tool name → kind name).
// Entries in extra override built-in ones.
func (c Catalogue) With(extra map[string]string) (Catalogue, error) {
	out := make(Catalogue, len(c)+len(extra))
	for name, kind := range c {
		out[name] = kind
	}

	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kind, err := ParseKind(extra[name])
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		out[name] = kind
	}
	return out, nil
}

// Kind returns the kind registered for tool, or KindUnknown.
func (c Catalogue) Kind(tool string) Kind {
	if k, ok := c[tool]; ok {
		return k
	}
	return KindUnknown
}
