package schema

import (
	"encoding/json"
	"testing"
)

func mustTransform(t *testing.T, in string) map[string]any {
	t.Helper()
	out, err := Transform(json.RawMessage(in))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return result
}

func TestTransformBasicProperties(t *testing.T) {
	in := `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "search text"},
			"limit": {"type": "integer"}
		},
		"required": ["query"]
	}`

	result := mustTransform(t, in)

	props, ok := result["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", result["properties"])
	}
	if _, ok := props["query"]; !ok {
		t.Fatalf("expected query property to survive")
	}
	required, ok := result["required"].([]any)
	if !ok || len(required) != 1 || required[0] != "query" {
		t.Fatalf("expected required=[query], got %v", result["required"])
	}
}

func TestTransformIsIdempotent(t *testing.T) {
	in := `{
		"type": "object",
		"properties": {
			"path": {"type": "string", "pattern": "^/.*", "unknownKeyword": true}
		}
	}`

	first, err := Transform(json.RawMessage(in))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	second, err := Transform(first)
	if err != nil {
		t.Fatalf("Transform (second pass): %v", err)
	}

	var a, b map[string]any
	json.Unmarshal(first, &a)
	json.Unmarshal(second, &b)

	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	if string(aj) != string(bj) {
		t.Fatalf("Transform not idempotent:\n%s\nvs\n%s", aj, bj)
	}
}

func TestTransformDropsUnknownKeywords(t *testing.T) {
	in := `{
		"type": "object",
		"properties": {
			"name": {"type": "string", "x-internal": "drop me", "title": "drop me too"}
		}
	}`

	result := mustTransform(t, in)
	props := result["properties"].(map[string]any)
	name := props["name"].(map[string]any)
	if _, ok := name["x-internal"]; ok {
		t.Fatalf("expected x-internal to be dropped")
	}
	if _, ok := name["title"]; ok {
		t.Fatalf("expected title to be dropped")
	}
	if name["type"] != "string" {
		t.Fatalf("expected type to survive, got %v", name["type"])
	}
}

func TestTransformInfersTypeFromDefault(t *testing.T) {
	in := `{
		"type": "object",
		"properties": {
			"verbose": {"default": false},
			"count": {"default": 3},
			"label": {"default": "x"}
		}
	}`

	result := mustTransform(t, in)
	props := result["properties"].(map[string]any)

	cases := map[string]any{"verbose": false, "count": float64(3), "label": "x"}
	wantTypes := map[string]string{"verbose": "boolean", "count": "integer", "label": "string"}
	for name, wantDefault := range cases {
		p, ok := props[name].(map[string]any)
		if !ok {
			t.Fatalf("missing property %q", name)
		}
		if p["type"] != wantTypes[name] {
			t.Fatalf("property %q: expected inferred type %q, got %v", name, wantTypes[name], p["type"])
		}
		if p["default"] != wantDefault {
			t.Fatalf("property %q: expected default %v to survive alongside the inferred type, got %v", name, wantDefault, p["default"])
		}
	}
}

func TestTransformFiltersInvalidPropertyNames(t *testing.T) {
	in := `{
		"type": "object",
		"properties": {
			"valid_name": {"type": "string"},
			"invalid name!": {"type": "string"}
		}
	}`

	result := mustTransform(t, in)
	props := result["properties"].(map[string]any)
	if _, ok := props["valid_name"]; !ok {
		t.Fatalf("expected valid_name to survive")
	}
	if _, ok := props["invalid name!"]; ok {
		t.Fatalf("expected invalid property name to be filtered out")
	}
}

func TestTransformResolvesDefsRefs(t *testing.T) {
	in := `{
		"type": "object",
		"$defs": {
			"Coordinates": {
				"type": "object",
				"properties": {
					"lat": {"type": "number"},
					"lng": {"type": "number"}
				}
			}
		},
		"properties": {
			"location": {"$ref": "#/$defs/Coordinates"}
		}
	}`

	result := mustTransform(t, in)
	props := result["properties"].(map[string]any)
	location, ok := props["location"].(map[string]any)
	if !ok {
		t.Fatalf("expected location property, got %v", props["location"])
	}
	if location["type"] != "object" {
		t.Fatalf("expected resolved $ref to carry type=object, got %v", location["type"])
	}
	if _, ok := location["properties"]; !ok {
		t.Fatalf("expected resolved $ref to carry nested properties")
	}
}

func TestTransformEmptySchema(t *testing.T) {
	result := mustTransform(t, `{}`)
	if result["type"] != "object" {
		t.Fatalf("expected default type=object, got %v", result["type"])
	}
}
