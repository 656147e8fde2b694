// Package redact masks credentials in tool input before it is written to an
// audit sink.
package redact

import (
	"regexp"
	"strconv"
	"strings"
)

// Placeholder replaces every redacted value.
const Placeholder = "[REDACTED]"

var secretPatterns = []*regexp.Regexp{
	// AWS
	regexp.MustCompile(`(?i)(aws_access_key_id|aws_secret_access_key|aws_session_token)\s*[=:]\s*['"]?[A-Za-z0-9/+=]{20,}['"]?`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),

	// GitHub
	regexp.MustCompile(`(?i)(github_token|gh_token|github_pat)\s*[=:]\s*['"]?[A-Za-z0-9_-]{30,}['"]?`),
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`),

	// Anthropic and OpenAI
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9]{32,}`),

	// Generic API keys
	regexp.MustCompile(`(?i)(api_key|apikey|api-key|secret_key|secretkey|secret-key|access_token|auth_token)\s*[=:]\s*['"]?[A-Za-z0-9_-]{16,}['"]?`),

	// Private keys
	regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`),

	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{20,}`),

	// Basic auth in URLs
	regexp.MustCompile(`https?://[^:/\s]+:[^@\s]+@`),

	// Slack
	regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`),

	// Stripe
	regexp.MustCompile(`[sr]k_live_[0-9a-zA-Z]{24}`),

	regexp.MustCompile(`(?i)(password|passwd|pwd|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`),
}

// sensitiveNames mark variable and field names whose values are secrets.
var sensitiveNames = []string{
	"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_SESSION_TOKEN", "GITHUB_TOKEN",
	"GH_TOKEN", "GITHUB_PAT", "API_KEY", "APIKEY", "SECRET", "AUTH_TOKEN", "ACCESS_TOKEN",
	"PASSWORD", "PASSWD", "DATABASE_URL", "REDIS_URL", "MONGO_URL", "NPM_TOKEN",
	"PYPI_TOKEN", "SLACK_TOKEN", "PRIVATE_KEY", "CREDENTIAL",
}

// assignment matches NAME=value as written in a shell command.
var assignment = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)=("[^"]*"|'[^']*'|\S+)`)

// Redact masks known secret formats in s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	result := assignment.ReplaceAllStringFunc(s, func(m string) string {
		name := m[:strings.IndexByte(m, '=')]
		if SensitiveName(name) {
			return name + "=" + Placeholder
		}
		return m
	})
	for _, re := range secretPatterns {
		result = re.ReplaceAllString(result, Placeholder)
	}
	return result
}

// SensitiveName reports whether a variable or field name holds a secret.
func SensitiveName(name string) bool {
	upper := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	for _, s := range sensitiveNames {
		if strings.Contains(upper, s) {
			return true
		}
	}
	return false
}

// Input returns a redacted deep copy of a tool_input object. Values under
// sensitive keys are replaced outright; other strings go through Redact.
// File contents and edit strings are reduced to a length marker.
func Input(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch {
		case SensitiveName(k):
			out[k] = Placeholder
		case bulkFields[k]:
			if s, ok := v.(string); ok {
				out[k] = bulkMarker(s)
				continue
			}
			out[k] = value(v)
		default:
			out[k] = value(v)
		}
	}
	return out
}

var bulkFields = map[string]bool{
	"content":    true,
	"old_string": true,
	"new_string": true,
	"new_source": true,
}

func bulkMarker(s string) string {
	if s == "" {
		return ""
	}
	return "[" + strconv.Itoa(len(s)) + " bytes]"
}

func value(v any) any {
	switch x := v.(type) {
	case string:
		return Redact(x)
	case map[string]any:
		return Input(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = value(e)
		}
		return out
	default:
		return v
	}
}
