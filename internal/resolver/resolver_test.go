package resolver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestResolveWrapping(t *testing.T) {
	r := New(WithHomeDir(t.TempDir()))

	tests := []struct {
		name         string
		command      string
		wrapped      bool
		inner        string
		innerRemoves bool
	}{
		{"bash -c rm", `bash -c "rm -rf /"`, true, "rm -rf /", true},
		{"sh -c echo", `sh -c 'echo hi'`, true, "echo hi", false},
		{"absolute shell path", `/bin/bash -c "rm x"`, true, "rm x", true},
		{"env launcher", `/usr/bin/env bash -c "rm -f a"`, true, "rm -f a", true},
		{"remaining tokens joined", `bash -c echo rm`, true, "echo rm", true},
		{"no inner command", `bash -c`, false, "", false},
		{"not a shell", `zsh -c "rm -rf /"`, false, "", false},
		{"second token not -c", `bash -x "rm -rf /"`, false, "", false},
		{"word boundary", `bash -c "confirm"`, true, "confirm", false},
		{"empty", "   ", false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(tt.command, "")
			if res.Wrapped != tt.wrapped || res.Inner != tt.inner || res.InnerRemoves != tt.innerRemoves {
				t.Errorf("Resolve(%q) = %+v, want wrapped=%v inner=%q removes=%v",
					tt.command, res, tt.wrapped, tt.inner, tt.innerRemoves)
			}
		})
	}
}

func TestResolveScripts(t *testing.T) {
	dir := t.TempDir()
	home := t.TempDir()

	writeFile(t, filepath.Join(dir, "cleanup.sh"), "#!/bin/sh\nrm -f build/*.o\n")
	writeFile(t, filepath.Join(dir, "build.sh"), "#!/bin/sh\ngo build ./...\n")
	writeFile(t, filepath.Join(dir, "wipe"), "#!/bin/sh\nrm -rf ~\n")
	writeFile(t, filepath.Join(dir, "tool.py"), "import os\nos.system('rm -rf /')\n")
	writeFile(t, filepath.Join(dir, "big.sh"), strings.Repeat("#", 64)+"\nrm -rf /\n")
	writeFile(t, filepath.Join(home, "nuke.sh"), "rm -rf /\n")
	if err := os.Mkdir(filepath.Join(dir, "dir.sh"), 0o755); err != nil {
		t.Fatal(err)
	}

	r := New(WithHomeDir(home), WithMaxScriptBytes(64))

	tests := []struct {
		name    string
		command string
		cwd     string
		path    string
		removes bool
	}{
		{"script with rm", "./cleanup.sh", dir, filepath.Join(dir, "cleanup.sh"), true},
		{"script without rm", "./build.sh --fast", dir, filepath.Join(dir, "build.sh"), false},
		{"no extension", filepath.Join(dir, "wipe"), "", filepath.Join(dir, "wipe"), true},
		{"run through bash", "bash cleanup.sh", dir, filepath.Join(dir, "cleanup.sh"), true},
		{"home relative", "~/nuke.sh", "", filepath.Join(home, "nuke.sh"), true},
		{"python ignored", "./tool.py", dir, "", false},
		{"oversized ignored", "./big.sh", dir, "", false},
		{"directory ignored", "./dir.sh", dir, "", false},
		{"missing ignored", "./absent.sh", dir, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(tt.command, tt.cwd)
			if res.ScriptPath != tt.path || res.ScriptRemoves != tt.removes {
				t.Errorf("Resolve(%q) = path %q removes %v, want path %q removes %v",
					tt.command, res.ScriptPath, res.ScriptRemoves, tt.path, tt.removes)
			}
		})
	}
}
