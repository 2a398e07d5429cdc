package mapsafe

// Get retrieves a typed value from a map[string]any.
// If the key is missing or the type cannot be converted, it returns the default value.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	if val, ok := m[key]; ok {
		switch any(defaultValue).(type) {
		case int:
			switch x := val.(type) {
			case int:
				return any(x).(T)
			case float64:
				return any(int(x)).(T)
			}
		case float64:
			switch x := val.(type) {
			case float64:
				return any(x).(T)
			case int:
				return any(float64(x)).(T)
			}
		case string:
			if s, ok := val.(string); ok {
				return any(s).(T)
			}
		case bool:
			if b, ok := val.(bool); ok {
				return any(b).(T)
			}
		default:
			// fallback: if type matches exactly
			if v2, ok := val.(T); ok {
				return v2
			}
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a []string from a map[string]any.
// It accepts both []string and []any with string elements, which is what
// YAML and JSON decoding produce. Missing keys or mixed element types
// return the default value.
func GetStringSlice(m map[string]any, key string, defaultValue []string) []string {
	val, ok := m[key]
	if !ok {
		return defaultValue
	}

	switch xs := val.(type) {
	case []string:
		return xs
	case []any:
		out := make([]string, 0, len(xs))
		for _, x := range xs {
			s, ok := x.(string)
			if !ok {
				return defaultValue
			}
			out = append(out, s)
		}
		return out
	}

	return defaultValue
}
