// Package schema converts MCP tool input schemas into the restricted JSON
// Schema subset Anthropic's tool-use API accepts.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// maxDepth bounds recursion over attacker-controlled or buggy MCP schemas.
const maxDepth = 64

var propertyNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// allowedKeywords is the whitelist of JSON Schema keywords Anthropic's tool
// format understands. Anything else is dropped during cleaning.
var allowedKeywords = map[string]bool{
	"type": true, "description": true, "properties": true,
	"required": true, "items": true, "enum": true, "const": true,
	"minimum": true, "maximum": true, "minLength": true, "maxLength": true,
	"pattern": true, "format": true,
}

// Transform converts an MCP tool's inputSchema into Anthropic-compatible
// form: $ref/$defs resolved, unsupported keywords stripped, property names
// filtered against Anthropic's naming pattern, and a best-effort type
// inferred for properties that carry a default but no declared type.
//
// Transform is pure and idempotent: Transform(Transform(s)) == Transform(s).
func Transform(mcpSchema json.RawMessage) (json.RawMessage, error) {
	if len(mcpSchema) == 0 {
		return json.Marshal(map[string]any{"type": "object"})
	}

	var raw any
	if err := json.Unmarshal(mcpSchema, &raw); err != nil {
		return nil, fmt.Errorf("schema: invalid input: %w", err)
	}

	root, ok := raw.(map[string]any)
	if !ok {
		return json.Marshal(map[string]any{"type": "object"})
	}

	out := map[string]any{"type": "object"}
	if t, ok := root["type"]; ok {
		out["type"] = t
	}

	defs, _ := root["$defs"].(map[string]any)
	resolved := root
	if needsResolution(root) {
		r, err := resolveRefs(root, defs, 0)
		if err != nil {
			return nil, err
		}
		resolved, _ = r.(map[string]any)
		if resolved == nil {
			resolved = root
		}
	}

	if props, ok := resolved["properties"]; ok {
		cleaned, err := cleanProperties(props, 0)
		if err != nil {
			return nil, err
		}
		out["properties"] = cleaned
	}

	if required, ok := resolved["required"]; ok {
		out["required"] = required
	}

	return json.Marshal(out)
}

func needsResolution(schema map[string]any) bool {
	if _, ok := schema["$defs"]; ok {
		return true
	}
	for k := range schema {
		if k == "$ref" {
			return true
		}
	}
	return false
}

// resolveRefs walks schema, inlining "#/$defs/<name>" references and
// dropping the "$defs"/"$schema" bookkeeping keys.
func resolveRefs(node any, defs map[string]any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("schema: exceeded max nesting depth %d", maxDepth)
	}

	switch v := node.(type) {
	case map[string]any:
		resolved := map[string]any{}
		for key, value := range v {
			switch key {
			case "$schema", "$defs":
				continue
			case "$ref":
				refPath, ok := value.(string)
				if !ok {
					continue
				}
				def := resolveRefPath(refPath, defs)
				if def == nil {
					continue
				}
				defMap, ok := def.(map[string]any)
				if !ok {
					continue
				}
				inner, err := resolveRefs(defMap, defs, depth+1)
				if err != nil {
					return nil, err
				}
				innerMap, _ := inner.(map[string]any)
				for dk, dv := range innerMap {
					if dk == "$ref" {
						continue
					}
					resolved[dk] = dv
				}
			default:
				child, err := resolveRefs(value, defs, depth+1)
				if err != nil {
					return nil, err
				}
				resolved[key] = child
			}
		}
		return resolved, nil
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			child, err := resolveRefs(item, defs, depth+1)
			if err != nil {
				return nil, err
			}
			result[i] = child
		}
		return result, nil
	default:
		return v, nil
	}
}

func resolveRefPath(refPath string, defs map[string]any) any {
	const prefix = "#/$defs/"
	if len(refPath) <= len(prefix) || refPath[:len(prefix)] != prefix {
		return nil
	}
	if defs == nil {
		return nil
	}
	return defs[refPath[len(prefix):]]
}

// cleanProperties filters a "properties" object down to validly-named keys,
// recursively cleaning each property's schema value.
func cleanProperties(properties any, depth int) (map[string]any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("schema: exceeded max nesting depth %d", maxDepth)
	}

	propsMap, ok := properties.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}

	cleaned := map[string]any{}
	for name, value := range propsMap {
		if !isValidPropertyName(name) {
			continue
		}
		child, err := cleanSchemaValue(value, depth+1)
		if err != nil {
			return nil, err
		}
		cleaned[name] = child
	}
	return cleaned, nil
}

// cleanSchemaValue keeps only whitelisted keywords, recursing into nested
// schemas, and infers a type for properties with a default but no type.
func cleanSchemaValue(value any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("schema: exceeded max nesting depth %d", maxDepth)
	}

	switch v := value.(type) {
	case map[string]any:
		cleaned := map[string]any{}
		defaultVal, hasDefault := v["default"]
		_, hasType := v["type"]

		for key, val := range v {
			if key == "properties" {
				props, err := cleanProperties(val, depth+1)
				if err != nil {
					return nil, err
				}
				cleaned["properties"] = props
				continue
			}
			if !allowedKeywords[key] {
				if key == "default" && hasType {
					cleaned["default"] = val
				}
				continue
			}
			child, err := cleanSchemaValue(val, depth+1)
			if err != nil {
				return nil, err
			}
			cleaned[key] = child
		}

		if hasDefault && !hasType {
			cleaned["type"] = inferType(defaultVal)
			cleaned["default"] = defaultVal
		}

		return cleaned, nil
	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			child, err := cleanSchemaValue(item, depth+1)
			if err != nil {
				return nil, err
			}
			result[i] = child
		}
		return result, nil
	default:
		return v, nil
	}
}

func inferType(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		if value.(float64) == float64(int64(value.(float64))) {
			return "integer"
		}
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return "string"
	}
}

func isValidPropertyName(name string) bool {
	return propertyNamePattern.MatchString(name)
}
