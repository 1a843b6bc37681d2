package config

import "strings"

// ParseConfigPath splits a dotted key such as "tts.voiceId" into segments.
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment: " + raw}
		}
	}
	return parts, nil
}

// parentOf walks every segment but the last and returns the map holding the
// leaf. With create set, missing or non-map intermediates are replaced by
// empty maps.
func parentOf(root map[string]any, path []string, create bool) (map[string]any, bool) {
	m := root
	for _, key := range path[:len(path)-1] {
		child, ok := m[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			child = map[string]any{}
			m[key] = child
		}
		m = child
	}
	return m, true
}

// GetValueAtPath returns the value stored under path in a raw config tree.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	if len(path) == 0 {
		return root, true
	}
	parent, ok := parentOf(root, path, false)
	if !ok {
		return nil, false
	}
	v, ok := parent[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath stores value under path, creating sections as needed.
func SetValueAtPath(root map[string]any, path []string, value any) {
	parent, _ := parentOf(root, path, true)
	parent[path[len(path)-1]] = value
}

// UnsetValueAtPath deletes the value under path and reports whether it existed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	parent, ok := parentOf(root, path, false)
	if !ok {
		return false
	}
	leaf := path[len(path)-1]
	if _, ok := parent[leaf]; !ok {
		return false
	}
	delete(parent, leaf)
	return true
}
