package spec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	content := []byte(`
name: jewel-serve
base_image: pytorch/pytorch:1.13.1-cuda11.6-cudnn8-runtime
system_packages:
  - curl
manifest: requirements.txt
port: 8080
entrypoint: [python, app.py]
gpus: true
`)
	bs, err := Parse(content)
	require.NoError(t, err)
	assert.Equal(t, "jewel-serve", bs.Name)
	assert.Equal(t, "pytorch/pytorch:1.13.1-cuda11.6-cudnn8-runtime", bs.BaseImage)
	assert.Equal(t, []string{"curl"}, bs.SystemPackages)
	assert.Equal(t, 8080, bs.Port)
	assert.Equal(t, []string{"python", "app.py"}, bs.Entrypoint)
	assert.True(t, bs.GPUs)
	assert.Equal(t, ".", bs.AppDir, "app_dir defaults to the tree root")
}

func TestParseDescriptorDefaults(t *testing.T) {
	bs, err := Parse([]byte("name: minimal\n"))
	require.NoError(t, err)

	// Omitted fields inherit the GPU serving defaults.
	def := DefaultSpec()
	assert.Equal(t, def.BaseImage, bs.BaseImage)
	assert.Equal(t, def.Port, bs.Port)
	assert.Equal(t, def.Entrypoint, bs.Entrypoint)
	assert.Equal(t, def.Manifest, bs.Manifest)
}

func TestParseDescriptorRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("bass_image: oops\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BuildSpec)
	}{
		{"empty base image", func(bs *BuildSpec) { bs.BaseImage = "" }},
		{"base image with whitespace", func(bs *BuildSpec) { bs.BaseImage = "bad image" }},
		{"port zero", func(bs *BuildSpec) { bs.Port = 0 }},
		{"port out of range", func(bs *BuildSpec) { bs.Port = 70000 }},
		{"no entrypoint", func(bs *BuildSpec) { bs.Entrypoint = nil }},
		{"absolute manifest path", func(bs *BuildSpec) { bs.Manifest = "/etc/passwd" }},
		{"escaping manifest path", func(bs *BuildSpec) { bs.Manifest = "../outside.txt" }},
		{"shell metacharacters in package", func(bs *BuildSpec) { bs.SystemPackages = []string{"curl; rm -rf /"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs := DefaultSpec()
			tt.mutate(bs)
			assert.Error(t, bs.Validate())
		})
	}
}

func TestLoadMissingDescriptorUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	bs, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultSpec(), bs)
}

func TestLoadReadsDescriptorFromTree(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, DescriptorFileName), []byte("name: from-tree\nport: 9000\n"), 0o644)
	require.NoError(t, err)

	bs, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-tree", bs.Name)
	assert.Equal(t, 9000, bs.Port)
}

func TestLoadMalformedDescriptorFails(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, DescriptorFileName), []byte("port: [not a number\n"), 0o644)
	require.NoError(t, err)

	_, err = Load(dir)
	assert.Error(t, err)
}
