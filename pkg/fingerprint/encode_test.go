package fingerprint

import (
	"errors"
	"testing"
)

func TestEncode_OrderIndependent(t *testing.T) {
	a, err := Encode(map[string]map[string]any{
		"solver": {"type": "rk4", "timestep": 0.01},
		"mesh":   {"nx": 64, "ny": 64},
	})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	b, err := Encode(map[string]map[string]any{
		"mesh":   {"ny": 64, "nx": 64},
		"solver": {"timestep": 0.01, "type": "rk4"},
	})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	if !a.Equal(b) {
		t.Fatalf("fingerprints differ: %s vs %s", a.Digest(), b.Digest())
	}
}

func TestEncode_DistinguishesValues(t *testing.T) {
	a, err := Encode(map[string]map[string]any{"mesh": {"nx": 64}})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	b, err := Encode(map[string]map[string]any{"mesh": {"nx": 128}})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if a.Equal(b) {
		t.Fatal("fingerprints for different values compare equal")
	}
}

func TestEncode_NormalizesScalars(t *testing.T) {
	fp, err := Encode(map[string]map[string]any{
		"global": {"restart": true, "nout": int32(100), "appendix": "run-a"},
	})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	values := fp.Values()
	if got := values["global_restart"]; got != int64(1) {
		t.Fatalf("restart normalized to %v (%T), want int64(1)", got, got)
	}
	if got := values["global_nout"]; got != int64(100) {
		t.Fatalf("nout normalized to %v (%T), want int64(100)", got, got)
	}
	if got := values["global_appendix"]; got != "run-a" {
		t.Fatalf("appendix = %v, want run-a", got)
	}
}

func TestEncode_RejectsNonScalars(t *testing.T) {
	cases := map[string]any{
		"nested map": map[string]any{"x": 1},
		"slice":      []int{1, 2, 3},
		"nil":        nil,
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Encode(map[string]map[string]any{"group": {"bad": value}})
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("Encode() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestEncode_RejectsEmptySet(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("Encode(nil) error = %v, want ErrInvalidParameter", err)
	}
}

func TestColumn_SQLType(t *testing.T) {
	fp, err := Encode(map[string]map[string]any{
		"g": {"i": 1, "f": 0.5, "s": "text", "b": false},
	})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	want := map[string]string{
		"g_i": "INTEGER",
		"g_f": "REAL",
		"g_s": "TEXT",
		"g_b": "INTEGER",
	}
	for _, c := range fp.Columns() {
		if c.SQLType() != want[c.Name] {
			t.Fatalf("column %s type = %s, want %s", c.Name, c.SQLType(), want[c.Name])
		}
	}
}
