package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBindingsLoaderDefaultsShaderName(t *testing.T) {
	path := writeFile(t, t.TempDir(), "water"+BindingsExtension, `
batchable = true

[[textures]]
key = "normal_map"
variable = "u_normals"

[[uniforms]]
key = "wave_height"
variable = "u_wave_height"
type = "float"
`)
	data, err := (&BindingsLoader{}).Load(path)
	require.NoError(t, err)

	bf := data.(*BindingsFile)
	assert.Equal(t, "water", bf.Shader)
	assert.True(t, bf.Batchable)
	require.Len(t, bf.Textures, 1)
	assert.Equal(t, "u_normals", bf.Textures[0].Variable)
	require.Len(t, bf.Uniforms, 1)
	assert.Equal(t, "float", bf.Uniforms[0].Type)
	assert.Empty(t, bf.Attributes)
}

func TestBindingsLoaderRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	unknown := writeFile(t, dir, "a"+BindingsExtension, `colour = "red"`)
	_, err := (&BindingsLoader{}).Load(unknown)
	assert.ErrorContains(t, err, "failed to decode")

	missing := writeFile(t, dir, "b"+BindingsExtension, `
[[uniforms]]
key = "tint"
`)
	_, err = (&BindingsLoader{}).Load(missing)
	assert.ErrorContains(t, err, "key and a variable")

	_, err = (&BindingsLoader{}).Load(filepath.Join(dir, "nope"+BindingsExtension))
	assert.Error(t, err)
}
