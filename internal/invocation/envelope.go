package invocation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrMalformedEnvelope is returned when the hook input is not a JSON object
// of the expected shape.
var ErrMalformedEnvelope = errors.New("malformed invocation envelope")

// Invocation is one request to run a tool, as delivered by the host runtime.
type Invocation struct {
	ToolName  string         `json:"tool_name"`
	Input     map[string]any `json:"tool_input"`
	Cwd       string         `json:"cwd,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	HookEvent string         `json:"hook_event_name,omitempty"`
}

const envelopeSchemaJSON = `{
  "type": "object",
  "required": ["tool_name"],
  "properties": {
    "tool_name":       {"type": "string"},
    "tool_input":      {"type": ["object", "null"]}
  }
}`

// wireEnvelope is the decoded form. Host fields are kept raw so a null or
// mistyped value never rejects the tool call itself.
type wireEnvelope struct {
	ToolName  string          `json:"tool_name"`
	Input     map[string]any  `json:"tool_input"`
	Cwd       json.RawMessage `json:"cwd"`
	SessionID json.RawMessage `json:"session_id"`
	HookEvent json.RawMessage `json:"hook_event_name"`
}

var envelopeSchema = mustCompileEnvelopeSchema()

func mustCompileEnvelopeSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invocation: envelope schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("envelope.json", doc); err != nil {
		panic(fmt.Sprintf("invocation: envelope schema: %v", err))
	}
	sch, err := c.Compile("envelope.json")
	if err != nil {
		panic(fmt.Sprintf("invocation: envelope schema: %v", err))
	}
	return sch
}

// ParseEnvelope decodes and validates one hook envelope. Numbers inside
// tool_input are kept as json.Number so they stringify exactly as sent.
// Host fields (cwd, session_id, hook_event_name) are taken when they are
// strings or numbers and ignored otherwise. Every failure wraps
// ErrMalformedEnvelope.
func ParseEnvelope(data []byte) (Invocation, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Invocation{}, fmt.Errorf("%w: empty input", ErrMalformedEnvelope)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return Invocation{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := envelopeSchema.Validate(doc); err != nil {
		return Invocation{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	var w wireEnvelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return Invocation{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return Invocation{
		ToolName:  w.ToolName,
		Input:     w.Input,
		Cwd:       hostString(w.Cwd),
		SessionID: hostString(w.SessionID),
		HookEvent: hostString(w.HookEvent),
	}, nil
}

func hostString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	}
	return ""
}
