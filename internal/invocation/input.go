package invocation

// Input is the tool-specific payload of an invocation after classification.
// The set of implementations is closed: BashInput, FileInput, GlobInput,
// GrepInput, LSInput, TaskInput and UnknownInput.
type Input interface {
	// View projects the input onto the flat field set detectors read.
	View() View
	sealed()
}

// View is the canonical, read-only projection of an invocation. Fields that
// do not apply to the tool kind are empty strings.
type View struct {
	Kind        Kind
	Tool        string
	Command     string
	FilePath    string
	Pattern     string
	Glob        string
	Path        string
	Prompt      string
	Description string
}

// BashInput is a shell command execution.
type BashInput struct {
	Tool    string
	Command string
}

// FileInput covers tools addressing a single file (Read, Write, Edit, MultiEdit).
type FileInput struct {
	Tool     string
	FilePath string
}

// GlobInput is a file-name pattern search.
type GlobInput struct {
	Tool    string
	Pattern string
}

// GrepInput is a content search, optionally scoped by path and glob.
type GrepInput struct {
	Tool    string
	Pattern string
	Path    string
	Glob    string
}

// LSInput is a directory listing.
type LSInput struct {
	Tool string
	Path string
}

// TaskInput delegates work to a sub-agent described in free text.
type TaskInput struct {
	Tool        string
	Prompt      string
	Description string
}

// UnknownInput is any tool not in the catalogue. Its View is empty, so no
// detector can match it.
type UnknownInput struct {
	Tool string
}

func (in BashInput) View() View { return View{Kind: KindBash, Tool: in.Tool, Command: in.Command} }
func (in FileInput) View() View { return View{Kind: KindFile, Tool: in.Tool, FilePath: in.FilePath} }
func (in GlobInput) View() View { return View{Kind: KindGlob, Tool: in.Tool, Pattern: in.Pattern} }
func (in GrepInput) View() View {
	return View{Kind: KindGrep, Tool: in.Tool, Pattern: in.Pattern, Path: in.Path, Glob: in.Glob}
}
func (in LSInput) View() View { return View{Kind: KindLS, Tool: in.Tool, Path: in.Path} }
func (in TaskInput) View() View {
	return View{Kind: KindTask, Tool: in.Tool, Prompt: in.Prompt, Description: in.Description}
}
func (in UnknownInput) View() View { return View{Kind: KindUnknown, Tool: in.Tool} }

func (BashInput) sealed()    {}
func (FileInput) sealed()    {}
func (GlobInput) sealed()    {}
func (GrepInput) sealed()    {}
func (LSInput) sealed()      {}
func (TaskInput) sealed()    {}
func (UnknownInput) sealed() {}
