package live

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed frame.schema.json
var frameSchemaJSON []byte

const frameSchemaURL = "https://najdeno.local/schema/frame.json"

// compileFrameSchema compiles the embedded schema for inbound frames.
func compileFrameSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(frameSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing frame schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(frameSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding frame schema: %w", err)
	}
	sch, err := c.Compile(frameSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling frame schema: %w", err)
	}
	return sch, nil
}

// validateFrame checks a raw inbound frame against the schema.
func validateFrame(sch *jsonschema.Schema, raw []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("malformed frame: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}
	return nil
}
