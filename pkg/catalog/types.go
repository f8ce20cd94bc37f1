package catalog

import (
	"context"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Mode selects which subset of the catalog a run is eligible for
type Mode string

const (
	ModeCoding  Mode = "coding"
	ModeBrowser Mode = "browser"
	ModeCLI     Mode = "cli"
	ModeAuto    Mode = "auto"
)

// ParseMode validates a mode string
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCoding, ModeBrowser, ModeCLI, ModeAuto:
		return Mode(s), nil
	case "":
		return ModeCoding, nil
	default:
		return "", fmt.Errorf("invalid mode: %s", s)
	}
}

// Parameter declares one tool input field
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Handler is the function signature for tool execution
type Handler func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)

// Tool is an immutable catalog entry. Identity is ID.
type Tool struct {
	ID                   string      `json:"id"`
	Description          string      `json:"description"`
	Parameters           []Parameter `json:"parameters"`
	DefaultNeedsApproval bool        `json:"default_needs_approval"`
	Handler              Handler     `json:"-"`

	schema *gojsonschema.Schema
}

// Result is the uniform tool outcome. Tools never raise uncaught faults:
// failures travel in Error.
type Result struct {
	Output map[string]interface{} `json:"output,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// OK reports whether the invocation succeeded
func (r Result) OK() bool {
	return r.Error == ""
}

// Validate checks input against the tool's generated JSON schema
func (t *Tool) Validate(input map[string]interface{}) error {
	if t.schema == nil {
		return nil
	}

	result, err := t.schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return err
	}
	if !result.Valid() {
		errs := []string{}
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}

// Invoke validates input and runs the tool handler, converting any failure
// into a structured Result. A handler panic is recovered into Result.Error.
func (t *Tool) Invoke(ctx context.Context, input map[string]interface{}) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Error: fmt.Sprintf("tool %s panicked: %v", t.ID, r)}
		}
	}()

	if input == nil {
		input = map[string]interface{}{}
	}

	if err := t.Validate(input); err != nil {
		return Result{Error: fmt.Sprintf("parameter validation failed: %v", err)}
	}

	output, err := t.Handler(ctx, input)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Output: output}
}

// InputSchema returns the tool's input declaration in LLM tool format
func (t *Tool) InputSchema() map[string]interface{} {
	return schemaMap(t.Parameters)
}

func schemaMap(params []Parameter) map[string]interface{} {
	properties := make(map[string]interface{})
	required := []string{}

	for _, p := range params {
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// compileSchema builds the gojsonschema validator for a tool
func (t *Tool) compileSchema() error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap(t.Parameters)))
	if err != nil {
		return fmt.Errorf("failed to compile schema for %s: %w", t.ID, err)
	}
	t.schema = schema
	return nil
}
