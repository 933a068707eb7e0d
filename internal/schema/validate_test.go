package schema

import (
	"encoding/json"
	"testing"
)

func TestValidateMetaSchemaAcceptsWellFormedSchema(t *testing.T) {
	in := json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}}}`)
	if err := ValidateMetaSchema(in); err != nil {
		t.Fatalf("expected valid schema, got %v", err)
	}
}

func TestValidateMetaSchemaRejectsWrongKeywordType(t *testing.T) {
	in := json.RawMessage(`{"type":"object","required":"query"}`)
	if err := ValidateMetaSchema(in); err == nil {
		t.Fatalf("expected an error for required as a non-array")
	}
}

func TestValidateMetaSchemaAcceptsEmptySchema(t *testing.T) {
	if err := ValidateMetaSchema(nil); err != nil {
		t.Fatalf("expected nil schema to be accepted, got %v", err)
	}
}
