package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromBytes(t *testing.T) {
	t.Run("groups and globals", func(t *testing.T) {
		set, err := LoadFromBytes([]byte(`
nout: 100
timestep: 0.5
mesh:
  nx: 64
  ny: 64
solver:
  type: rk4
`))
		require.NoError(t, err)

		assert.Equal(t, 100, set["global"]["nout"])
		assert.Equal(t, 0.5, set["global"]["timestep"])
		assert.Equal(t, 64, set["mesh"]["nx"])
		assert.Equal(t, "rk4", set["solver"]["type"])
	})

	t.Run("renames all group", func(t *testing.T) {
		set, err := LoadFromBytes([]byte("all:\n  bndry: dirichlet\n"))
		require.NoError(t, err)

		_, hasAll := set["all"]
		assert.False(t, hasAll)
		assert.Equal(t, "dirichlet", set["all_boundaries"]["bndry"])
	})

	t.Run("rejects reserved group", func(t *testing.T) {
		_, err := LoadFromBytes([]byte("run:\n  x: 1\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reserved")
	})

	t.Run("rejects nested non-scalars", func(t *testing.T) {
		_, err := LoadFromBytes([]byte("mesh:\n  grid:\n    nx: 64\n"))
		require.Error(t, err)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := LoadFromBytes([]byte("   \n"))
		require.Error(t, err)
	})

	t.Run("rejects invalid yaml", func(t *testing.T) {
		_, err := LoadFromBytes([]byte("mesh: [unclosed"))
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("round trip through disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "params.yaml")
		require.NoError(t, os.WriteFile(path, []byte("mesh:\n  nx: 32\n"), 0o644))

		set, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 32, set["mesh"]["nx"])
	})
}
