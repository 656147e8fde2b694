package policy

import (
	"github.com/gzhole/toolgate/internal/invocation"
	"github.com/gzhole/toolgate/internal/resolver"
)

type Decision string

const (
	DecisionAllow Decision = "ALLOW"
	DecisionBlock Decision = "BLOCK"
)

// Category is the policy class that caused a block.
type Category string

const (
	CategoryRmCommand           Category = "rm_command"
	CategoryIndirectRm          Category = "indirect_rm"
	CategoryFileDeletion        Category = "file_deletion"
	CategoryEnvFileAccess       Category = "env_file_access"
	CategorySensitiveFileAccess Category = "sensitive_file_access"
	CategorySystemOperation     Category = "system_operation"
	CategoryNetworkOperation    Category = "network_operation"
	CategoryEmailOperation      Category = "email_operation"
	CategoryPermissionOperation Category = "permission_operation"
	CategoryUserManagement      Category = "user_management"
	CategorySystemControl       Category = "system_control"
	CategoryForkBomb            Category = "fork_bomb"
)

const deletionMessage = "Safety check: File deletion commands are restricted to prevent accidental data loss"

var categoryMessages = map[Category]string{
	CategoryRmCommand:           deletionMessage,
	CategoryIndirectRm:          deletionMessage,
	CategoryFileDeletion:        deletionMessage,
	CategoryEnvFileAccess:       "Safety check: Environment file operations are restricted to protect sensitive data",
	CategorySensitiveFileAccess: "Safety check: Access to sensitive files containing credentials or personal data is restricted",
	CategorySystemOperation:     "Safety check: System operations that could damage disks or partitions are restricted",
	CategoryNetworkOperation:    "Safety check: Network operations and remote connections are restricted",
	CategoryEmailOperation:      "Safety check: Email sending operations are restricted",
	CategoryPermissionOperation: "Safety check: Dangerous permission changes that could compromise system security are restricted",
	CategoryUserManagement:      "Safety check: User and group management operations are restricted",
	CategorySystemControl:       "Safety check: System control operations including reboot, service management, and firewall changes are restricted",
	CategoryForkBomb:            "Safety check: Fork bomb patterns detected - this could crash the system",
}

// Message returns the fixed rationale shown to the agent for a block.
func (c Category) Message() string {
	return categoryMessages[c]
}

// Categories lists every category in evaluation order.
func Categories() []Category {
	return []Category{
		CategorySensitiveFileAccess,
		CategoryEnvFileAccess,
		CategoryForkBomb,
		CategoryRmCommand,
		CategoryIndirectRm,
		CategoryFileDeletion,
		CategorySystemOperation,
		CategoryNetworkOperation,
		CategoryEmailOperation,
		CategoryPermissionOperation,
		CategoryUserManagement,
		CategorySystemControl,
	}
}

// Scope restricts which tool kinds a detector is consulted for.
type Scope int

const (
	AllTools Scope = iota
	BashOnly
)

// Detector is one stateless predicate over a Subject.
type Detector struct {
	ID       string
	Category Category
	Scope    Scope
	Match    func(*Subject) bool
}

// Subject is what detectors inspect: the canonical view of an invocation
// plus whatever the resolver found behind it.
type Subject struct {
	View       invocation.View
	Resolution resolver.Resolution

	lines []*commandLine
}

// NewSubject prepares v for detection. For Bash the raw command and, when
// wrapped, the unwrapped inner command are both parsed once here.
func NewSubject(v invocation.View, res resolver.Resolution) *Subject {
	s := &Subject{View: v, Resolution: res}
	if v.Kind == invocation.KindBash && v.Command != "" {
		s.lines = append(s.lines, parseCommandLine(v.Command))
		if res.Wrapped && res.Inner != "" {
			s.lines = append(s.lines, parseCommandLine(res.Inner))
		}
	}
	return s
}

// anyLine reports whether fn holds for the command or its unwrapped form.
func (s *Subject) anyLine(fn func(*commandLine) bool) bool {
	for _, l := range s.lines {
		if fn(l) {
			return true
		}
	}
	return false
}

// Mode controls whether blocks are enforced.
type Mode string

const (
	ModeEnforce Mode = "enforce"
	ModeMonitor Mode = "monitor"
)

// Result is the outcome of evaluating one invocation.
type Result struct {
	Decision   Decision `json:"decision"`
	Category   Category `json:"category,omitempty"`
	Message    string   `json:"message,omitempty"`
	DetectorID string   `json:"detector,omitempty"`
	Tool       string   `json:"tool,omitempty"`

	// Err is the internal fault that forced a fail-open allow, if any.
	Err error `json:"-"`
}

// Blocked reports whether the invocation was blocked.
func (r Result) Blocked() bool {
	return r.Decision == DecisionBlock
}
