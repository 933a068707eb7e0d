package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateMetaSchema reports whether mcpSchema is itself a well-formed JSON
// Schema document, compiling it with the stock meta-schema rather than
// validating any instance against it. This is a defensive check an MCP
// server's advertised tool schema can fail without Transform itself
// breaking — callers treat a failure as a warning, not a reason to drop
// the tool.
func ValidateMetaSchema(mcpSchema json.RawMessage) error {
	if len(mcpSchema) == 0 {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	const resourceName = "tool-input-schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(mcpSchema)); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if _, err := compiler.Compile(resourceName); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
