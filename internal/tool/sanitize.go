package tool

// Keys some providers reject in tool input schemas.
var strippedKeys = map[string]bool{
	"additionalProperties": true,
	"$schema":              true,
	"schema":               true,
}

// Sanitize returns a deep copy of schema with provider-hostile keys removed
// at every nesting level. The input is not modified.
func Sanitize(schema map[string]any) map[string]any {
	out, _ := sanitizeValue(schema).(map[string]any)
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if strippedKeys[k] {
				continue
			}
			out[k] = sanitizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = sanitizeValue(inner)
		}
		return out
	default:
		return v
	}
}
