// Package toolschema reshapes MCP tool input schemas into the subset
// of JSON Schema the Gemini function-calling API accepts.
package toolschema

// Keywords the Gemini API rejects. Grouped by what they do in JSON
// Schema; all of them are simply dropped.
var unsupportedKeywords = []string{
	// references and metadata
	"$schema", "$id", "$ref", "$defs", "definitions", "$comment",
	// validation constraints
	"minItems", "maxItems", "minLength", "maxLength",
	"minimum", "maximum", "exclusiveMinimum", "exclusiveMaximum",
	"multipleOf", "pattern", "format",
	// composition
	"allOf", "oneOf", "not", "if", "then", "else",
	"dependentSchemas", "dependentRequired",
	// misc structural keywords
	"additionalProperties", "additional_properties",
	"patternProperties", "unevaluatedProperties", "unevaluatedItems",
	"title", "examples", "default", "const",
	"contentMediaType", "contentEncoding",
}

// Sanitize returns a deep copy of the schema with unsupported keywords
// removed at every nesting level. Arrays that end up without an items
// schema get a permissive string items schema, since Gemini rejects
// array declarations lacking one. The input map is never modified.
func Sanitize(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	return sanitizeObject(schema)
}

func sanitizeObject(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for key, value := range schema {
		if isUnsupported(key) {
			continue
		}
		out[key] = sanitizeValue(key, value)
	}

	if typ, ok := out["type"].(string); ok && typ == "array" {
		if _, ok := out["items"]; !ok {
			out["items"] = map[string]any{"type": "string"}
		}
	}
	return out
}

func sanitizeValue(key string, value any) any {
	switch key {
	case "properties":
		props, ok := value.(map[string]any)
		if !ok {
			return value
		}
		out := make(map[string]any, len(props))
		for name, sub := range props {
			if subSchema, ok := sub.(map[string]any); ok {
				out[name] = sanitizeObject(subSchema)
			} else {
				out[name] = sub
			}
		}
		return out
	case "items":
		if subSchema, ok := value.(map[string]any); ok {
			return sanitizeObject(subSchema)
		}
		return value
	case "anyOf", "any_of":
		variants, ok := value.([]any)
		if !ok {
			return value
		}
		out := make([]any, len(variants))
		for i, variant := range variants {
			if subSchema, ok := variant.(map[string]any); ok {
				out[i] = sanitizeObject(subSchema)
			} else {
				out[i] = variant
			}
		}
		return out
	default:
		return copyValue(value)
	}
}

// copyValue deep-copies nested containers so the sanitized schema never
// aliases the caller's data.
func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, sub := range v {
			out[k] = copyValue(sub)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, sub := range v {
			out[i] = copyValue(sub)
		}
		return out
	default:
		return v
	}
}

func isUnsupported(key string) bool {
	for _, banned := range unsupportedKeywords {
		if key == banned {
			return true
		}
	}
	return false
}
