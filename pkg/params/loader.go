package params

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set is a run's parameter set: group -> variable -> scalar value.
type Set map[string]map[string]any

// Reserved group names that collide with registry bookkeeping tables.
var reservedGroups = map[string]struct{}{
	"run": {},
}

// Load reads a YAML parameter file into a Set.
//
// The file is a mapping of groups to variables. Top-level scalars (values
// outside any group) are collected under the "global" group. The group "all"
// is renamed "all_boundaries" since ALL is a reserved SQL keyword.
//
// Returns an error if:
//   - The file cannot be read (not found, permission denied, etc.)
//   - The file content is not valid YAML
//   - A group uses a reserved name
func Load(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("parameter file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading parameter file: %s", path)
		}
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses a parameter set from raw YAML bytes.
func LoadFromBytes(data []byte) (Set, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("parameter file is empty")
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse parameter file: %w", err)
	}

	set := make(Set)
	for key, value := range raw {
		key = strings.TrimSpace(key)
		switch nested := value.(type) {
		case map[string]any:
			group := renameGroup(key)
			if _, reserved := reservedGroups[group]; reserved {
				return nil, fmt.Errorf("group name %q is reserved", group)
			}
			vars, err := scalarGroup(group, nested)
			if err != nil {
				return nil, err
			}
			set[group] = vars
		default:
			// Sectionless values belong to the implicit global group.
			if set["global"] == nil {
				set["global"] = make(map[string]any)
			}
			if !isScalar(value) {
				return nil, fmt.Errorf("global.%s: value %v is not a scalar", key, value)
			}
			set["global"][key] = value
		}
	}

	if len(set) == 0 {
		return nil, errors.New("parameter file contains no parameters")
	}

	return set, nil
}

func renameGroup(name string) string {
	if name == "all" {
		return "all_boundaries"
	}
	return name
}

func scalarGroup(group string, raw map[string]any) (map[string]any, error) {
	vars := make(map[string]any, len(raw))
	for name, value := range raw {
		if !isScalar(value) {
			return nil, fmt.Errorf("%s.%s: value %v is not a scalar", group, name, value)
		}
		vars[name] = value
	}
	return vars, nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case bool, int, int64, float64, string:
		return true
	default:
		return false
	}
}
