package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidParameter indicates a parameter value that cannot be stored as a
// single registry column (non-scalar, or an unsupported scalar kind).
var ErrInvalidParameter = errors.New("invalid parameter")

// Column is one flattened (group, variable) pair of a fingerprint.
//
// Name is "<group>_<variable>". Value is a normalized scalar: int64, float64
// or string. Booleans are normalized to int64 0/1 since SQLite has no bool
// type.
type Column struct {
	Name  string
	Value any
}

// Fingerprint is the canonical, order-independent encoding of a run's
// parameter set. Two logically identical parameter sets produce byte-identical
// fingerprints regardless of construction order.
//
// A Fingerprint is immutable once created.
type Fingerprint struct {
	columns []Column
	digest  string
}

// Encode canonicalizes a group -> variable -> scalar mapping.
//
// Accepted scalar kinds are booleans, integers, floats and strings. Any other
// value (nested maps, slices, nil, structs) fails with an error wrapping
// ErrInvalidParameter, since the persisted schema has one column per variable.
func Encode(params map[string]map[string]any) (Fingerprint, error) {
	if len(params) == 0 {
		return Fingerprint{}, fmt.Errorf("%w: empty parameter set", ErrInvalidParameter)
	}

	columns := make([]Column, 0, len(params))
	for group, vars := range params {
		group = strings.TrimSpace(group)
		if group == "" {
			return Fingerprint{}, fmt.Errorf("%w: empty group name", ErrInvalidParameter)
		}
		for name, raw := range vars {
			name = strings.TrimSpace(name)
			if name == "" {
				return Fingerprint{}, fmt.Errorf("%w: empty variable name in group %q", ErrInvalidParameter, group)
			}
			value, err := normalizeScalar(raw)
			if err != nil {
				return Fingerprint{}, fmt.Errorf("%w: %s.%s: %v", ErrInvalidParameter, group, name, err)
			}
			columns = append(columns, Column{Name: group + "_" + name, Value: value})
		}
	}

	sort.Slice(columns, func(i, j int) bool { return columns[i].Name < columns[j].Name })

	for i := 1; i < len(columns); i++ {
		if columns[i].Name == columns[i-1].Name {
			return Fingerprint{}, fmt.Errorf("%w: duplicate column %q after flattening", ErrInvalidParameter, columns[i].Name)
		}
	}

	digest, err := digestColumns(columns)
	if err != nil {
		return Fingerprint{}, err
	}

	return Fingerprint{columns: columns, digest: digest}, nil
}

// Columns returns the flattened columns in canonical (sorted) order.
func (f Fingerprint) Columns() []Column {
	out := make([]Column, len(f.columns))
	copy(out, f.columns)
	return out
}

// Values returns the columns as a name -> value map, the shape the registry's
// exact-match lookup expects.
func (f Fingerprint) Values() map[string]any {
	out := make(map[string]any, len(f.columns))
	for _, c := range f.columns {
		out[c.Name] = c.Value
	}
	return out
}

// Digest returns the sha256 hex digest of the canonical encoding.
func (f Fingerprint) Digest() string {
	return f.digest
}

// Equal reports whether two fingerprints denote the same configuration.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.digest != "" && f.digest == other.digest
}

// IsZero reports whether the fingerprint is the zero value.
func (f Fingerprint) IsZero() bool {
	return len(f.columns) == 0
}

// SQLType returns the SQLite column type for the column's value.
func (c Column) SQLType() string {
	switch c.Value.(type) {
	case int64:
		return "INTEGER"
	case float64:
		return "REAL"
	default:
		return "TEXT"
	}
}

func normalizeScalar(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		return x, nil
	case nil:
		return nil, errors.New("value is nil")
	default:
		return nil, fmt.Errorf("value of type %T is not a scalar", v)
	}
}

type digestPair struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

func digestColumns(columns []Column) (string, error) {
	pairs := make([]digestPair, len(columns))
	for i, c := range columns {
		pairs[i] = digestPair{Name: c.Name, Value: c.Value}
	}

	b, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("marshal fingerprint payload: %w", err)
	}

	sha := sha256.Sum256(b)
	return hex.EncodeToString(sha[:]), nil
}
