package policy

import (
	"regexp"
	"strings"

	"github.com/gzhole/toolgate/internal/invocation"
)

// sensitivePaths is the catalogue of credential, key, certificate, browser
// and history locations. Patterns are matched against single path-like
// tokens, so "$" anchors at the end of a path.
var sensitivePaths = compileAll(
	// system credentials; /etc/passwd is handled by mentionsEtcPasswd
	`/etc/shadow\b`, `/etc/gshadow\b`, `/etc/master\.passwd\b`,

	// ssh
	`\.ssh/id_[a-z0-9]+`, `\.ssh/.*(?:\.pem|\.key|_key)\b`, `\.ssh/(?:authorized_keys|known_hosts|config)\b`,
	`(?:^|/)\.ssh/?$`,

	// gpg
	`\.gnupg\b`, `\.pgp/`, `\bsecring\b`, `\bpubring\b`, `\btrustdb\b`,

	// cloud
	`\.aws(?:/|$)`, `\.boto\b`, `\.s3cfg\b`, `\.gcp/.*\.json`, `\.config/gcloud\b`, `\.azure(?:/|$)`,
	`\.kube(?:/|$)`, `\.kubectl/config`, `\.docker/config\.json`, `\.dockercfg\b`,

	// package registries and vcs
	`\.npmrc\b`, `\.npm/.*rc$`, `\.yarnrc\b`, `\.bundle/config\b`, `\.gem/credentials\b`, `\.pypirc\b`,
	`\.cargo/credentials`, `\.netrc\b`, `\.git-credentials\b`, `\.gitconfig\b`,

	// keys and certificates
	`\.(?:pem|key|pfx|p12|cer|crt|der|jks|keystore)$`, `private.*\.key`, `(?:ssl|tls|certs)/.*\.key`,

	// browsers
	`\.mozilla/.*(?:key[34]\.db|logins\.json|cookies\.sqlite|cert[89]\.db)`,
	`(?:google[/\\]chrome|google-chrome|chromium|brave|microsoft[ /\\-]edge).*[/\\](?:cookies|login data|web data)`,
	`library/keychains`,

	// password managers
	`\.password-store\b`, `keepass`, `1password`, `bitwarden`, `lastpass`,

	// history and session files
	`history$`, `\.histfile\b`, `\.lesshst\b`, `\.viminfo\b`, `\.wget-hsts\b`, `(?:^|/)\.rnd$`,
	`\.xauthority\b`, `\.rhosts\b`, `\.shosts\b`, `wallet\.dat\b`, `\.electrum/wallets`,
)

var (
	etcPasswd = regexp.MustCompile(`(?i)/etc/passwd(\S*)`)

	// Glob patterns that sweep for secrets by name.
	sensitiveGlobs = compileAll(
		`\*\.(?:pem|key|pfx|p12)\b`, `\*_key\b`, `\*passw(?:or)?d\*`, `\*credential`, `\*secret`,
		`id_[a-z]+`, `authorized_keys`,
	)

	// Directories whose listing exposes secrets.
	sensitiveDirs = compileAll(
		`(?:^|/)\.(?:ssh|gnupg|aws|kube|docker|password-store|azure)/?$`, `^/etc/?$`,
	)

	// Grep content patterns that hunt for credentials.
	secretSearch = compileAll(
		`passw(?:or)?d`, `secret`, `private.*key`, `api.*key`, `access.*token`, `auth.*token`,
		`bearer`, `credential`,
	)

	taskSensitive = compileAll(
		`ssh.*key`, `private.*key`, `credential`, `password`, `\.aws\b`, `\.kube\b`,
		`\b(?:shell|bash|zsh|command)\s+history\b`, `_history\b`, `/etc/shadow`, `\bshadow\s+file`,
		`passwd.*file`, `certificate`, `\.pem\b`, `\.key\b`, `browser.*(?:password|data|profile|cookie)`,
	)

	readVerbs = wordSet(
		"cat", "less", "more", "head", "tail", "grep", "egrep", "fgrep", "rg", "sed", "awk",
		"cut", "strings", "xxd", "hexdump", "od", "file", "openssl", "sqlite3", "sqlite",
		"bat", "tac", "nl", "base64", "cp", "mv", "tar", "zip", "scp", "rsync", "vi", "vim",
		"nano", "diff", "tee",
	)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// mentionsEtcPasswd matches /etc/passwd unless it is a .sample or .example copy.
func mentionsEtcPasswd(s string) bool {
	for _, m := range etcPasswd.FindAllStringSubmatch(s, -1) {
		rest := strings.ToLower(m[1])
		if !strings.HasPrefix(rest, ".sample") && !strings.HasPrefix(rest, ".example") {
			return true
		}
	}
	return false
}

// isSensitivePath checks one path-like string against the catalogue.
func isSensitivePath(p string) bool {
	if p == "" {
		return false
	}
	return mentionsEtcPasswd(p) || matchAny(p, sensitivePaths)
}

func sensitiveDetectors(protected *PathSet) []Detector {
	detectors := []Detector{
		{
			ID:       "sensitive-path",
			Category: CategorySensitiveFileAccess,
			Scope:    AllTools,
			Match:    matchSensitiveFields,
		},
		{
			ID:       "credential-search",
			Category: CategorySensitiveFileAccess,
			Scope:    AllTools,
			Match:    matchCredentialSearch,
		},
		bashDetector("sensitive-file-read", CategorySensitiveFileAccess, isSensitiveRead),
		bashDetector("shell-history", CategorySensitiveFileAccess, func(l *commandLine) bool {
			return l.runs(wordSet("history"))
		}),
	}
	if protected != nil && !protected.Empty() {
		detectors = append(detectors, Detector{
			ID:       "protected-path",
			Category: CategorySensitiveFileAccess,
			Scope:    AllTools,
			Match:    protected.matchSubject,
		})
	}
	return detectors
}

func matchSensitiveFields(s *Subject) bool {
	v := s.View
	switch v.Kind {
	case invocation.KindFile:
		return isSensitivePath(v.FilePath)
	case invocation.KindGlob:
		return isSensitivePath(v.Pattern) || matchAny(v.Pattern, sensitiveGlobs)
	case invocation.KindGrep:
		return isSensitivePath(v.Path) || isSensitivePath(v.Glob) || matchAny(v.Glob, sensitiveGlobs)
	case invocation.KindLS:
		return isSensitivePath(v.Path) || matchAny(v.Path, sensitiveDirs)
	case invocation.KindTask:
		return matchAny(v.Prompt, taskSensitive) || matchAny(v.Description, taskSensitive)
	}
	return false
}

// matchCredentialSearch flags Grep content searches for password-like terms
// unless they are confined to a temporary directory.
func matchCredentialSearch(s *Subject) bool {
	v := s.View
	if v.Kind != invocation.KindGrep || !matchAny(v.Pattern, secretSearch) {
		return false
	}
	return !strings.Contains(v.Path, "/tmp") && !strings.Contains(v.Path, "/var/tmp")
}

// isSensitiveRead flags a read-style program or a redirection together with
// a catalogue path in the same simple command, so "cat ~/.ssh/id_rsa" is
// judged like Read on the same file.
func isSensitiveRead(l *commandLine) bool {
	return l.anyCmd(func(c simpleCommand) bool {
		if !c.hasWord(readVerbs) && !hasRedirect(c.words) {
			return false
		}
		for _, w := range c.words {
			if isSensitivePath(w) {
				return true
			}
			if i := strings.IndexAny(w, "=<>"); i >= 0 && isSensitivePath(w[i+1:]) {
				return true
			}
		}
		return false
	})
}

func hasRedirect(words []string) bool {
	for _, w := range words {
		if strings.ContainsAny(w, "<>") {
			return true
		}
	}
	return false
}
