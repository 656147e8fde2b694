// Package resolver expands indirect command execution before policy
// evaluation: commands wrapped in "bash -c"/"sh -c" and shell scripts that are
// executed by path. It is the only part of the gate that touches the file
// system, and every I/O failure is treated as "nothing found".
package resolver

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/gzhole/toolgate/internal/shellwords"
)

// DefaultMaxScriptBytes caps how much of a script file is read.
const DefaultMaxScriptBytes int64 = 1 << 20

var rmWord = regexp.MustCompile(`(?i)\brm\b`)

// Resolution is what the resolver learned about one command.
type Resolution struct {
	// Wrapped is set when the command is "bash -c ..." or "sh -c ...".
	Wrapped bool
	// Inner is the wrapped command text, tokens re-joined by single spaces.
	Inner string
	// InnerRemoves reports a word-bounded "rm" inside Inner.
	InnerRemoves bool
	// ScriptPath is the resolved path of an executed script file, if any.
	ScriptPath string
	// ScriptRemoves reports a word-bounded "rm" inside that script.
	ScriptRemoves bool
}

// FS is the file-system surface the resolver needs.
type FS interface {
	Stat(name string) (fs.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
}

type osFS struct{}

func (osFS) Stat(name string) (fs.FileInfo, error)   { return os.Stat(name) }
func (osFS) Open(name string) (io.ReadCloser, error) { return os.Open(name) }

// Resolver probes commands for indirect execution. It is safe for
// concurrent use.
type Resolver struct {
	fsys     FS
	maxBytes int64
	home     string
	logger   *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFS replaces the operating system file system.
func WithFS(fsys FS) Option {
	return func(r *Resolver) { r.fsys = fsys }
}

// WithMaxScriptBytes sets the largest script that will be read.
func WithMaxScriptBytes(n int64) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// WithHomeDir sets the directory "~/" expands to.
func WithHomeDir(dir string) Option {
	return func(r *Resolver) { r.home = dir }
}

// WithLogger attaches a diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver backed by the real file system.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		fsys:     osFS{},
		maxBytes: DefaultMaxScriptBytes,
		logger:   zap.NewNop(),
	}
	if home, err := os.UserHomeDir(); err == nil {
		r.home = home
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve inspects command, resolving relative script paths against cwd.
// An empty command yields a zero Resolution.
func (r *Resolver) Resolve(command, cwd string) Resolution {
	var res Resolution
	if strings.TrimSpace(command) == "" {
		return res
	}

	args := shellwords.Split(command)
	args = skipEnv(args)
	if len(args) == 0 {
		return res
	}

	shell := isShell(args[0])
	if shell && len(args) >= 3 && args[1] == "-c" {
		res.Wrapped = true
		res.Inner = shellwords.Join(args[2:])
		res.InnerRemoves = rmWord.MatchString(res.Inner)
	}

	candidate := args[0]
	if shell && len(args) >= 2 && !strings.HasPrefix(args[1], "-") {
		candidate = args[1]
	}
	if path, ok := r.scriptPath(candidate, cwd); ok {
		if content, ok := r.readScript(path); ok {
			res.ScriptPath = path
			res.ScriptRemoves = rmWord.Match(content)
		}
	}

	return res
}

// scriptPath expands and absolutizes candidate, rejecting names that cannot
// be shell scripts.
func (r *Resolver) scriptPath(candidate, cwd string) (string, bool) {
	if candidate == "" {
		return "", false
	}
	ext := filepath.Ext(candidate)
	if ext != "" && ext != ".sh" {
		return "", false
	}

	path := candidate
	if path == "~" || strings.HasPrefix(path, "~/") {
		if r.home == "" {
			return "", false
		}
		path = filepath.Join(r.home, strings.TrimPrefix(path, "~"))
	}
	if !filepath.IsAbs(path) && cwd != "" {
		path = filepath.Join(cwd, path)
	}
	return path, true
}

// readScript returns the content of path when it is a regular file no larger
// than the configured cap.
func (r *Resolver) readScript(path string) ([]byte, bool) {
	info, err := r.fsys.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	if info.Size() > r.maxBytes {
		r.logger.Debug("script too large to inspect",
			zap.String("path", path),
			zap.Int64("size", info.Size()),
			zap.Int64("max", r.maxBytes))
		return nil, false
	}

	f, err := r.fsys.Open(path)
	if err != nil {
		r.logger.Debug("script unreadable", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	defer f.Close()

	// The file may have grown since Stat.
	data, err := io.ReadAll(io.LimitReader(f, r.maxBytes+1))
	if err != nil || int64(len(data)) > r.maxBytes {
		return nil, false
	}
	return data, true
}

func isShell(word string) bool {
	switch shellwords.Base(word) {
	case "bash", "sh":
		return true
	}
	return false
}

// skipEnv drops a leading "env" launcher and its VAR=value assignments, so
// "/usr/bin/env bash -c ..." is seen as "bash -c ...".
func skipEnv(args []string) []string {
	if len(args) == 0 || shellwords.Base(args[0]) != "env" {
		return args
	}
	rest := args[1:]
	for len(rest) > 0 && (strings.Contains(rest[0], "=") || strings.HasPrefix(rest[0], "-")) {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return args
	}
	return rest
}
