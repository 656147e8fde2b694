// Package invocation turns the host's loosely typed tool request into a
// closed set of typed inputs and the flat View that detectors read.
package invocation

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gzhole/toolgate/internal/textnorm"
)

// Classify maps an invocation onto its typed Input using cat to resolve the
// tool kind. Absent keys become empty strings and every extracted value is
// canonicalized. Classify never fails.
func Classify(inv Invocation, cat Catalogue) Input {
	get := func(key string) string {
		return textnorm.Canonical(stringify(inv.Input[key]))
	}

	tool := inv.ToolName
	switch cat.Kind(tool) {
	case KindBash:
		return BashInput{Tool: tool, Command: get("command")}
	case KindFile:
		return FileInput{Tool: tool, FilePath: get("file_path")}
	case KindGlob:
		return GlobInput{Tool: tool, Pattern: get("pattern")}
	case KindGrep:
		return GrepInput{Tool: tool, Pattern: get("pattern"), Path: get("path"), Glob: get("glob")}
	case KindLS:
		return LSInput{Tool: tool, Path: get("path")}
	case KindTask:
		return TaskInput{Tool: tool, Prompt: get("prompt"), Description: get("description")}
	default:
		return UnknownInput{Tool: tool}
	}
}

// stringify coerces a decoded JSON value to the text a detector should see.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
