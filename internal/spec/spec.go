// Package spec holds the build descriptor and dependency manifest codecs.
// A descriptor declares everything the build stage needs: the base image,
// OS packages, the manifest path, the application tree, the exposed port
// and the entry point. Validation errors here are build-fatal.
package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// DescriptorFileName is looked up at the root of the application tree.
const DescriptorFileName = "slipway.yaml"

// BuildSpec is the typed form of a slipway.yaml build descriptor.
type BuildSpec struct {
	Name           string   `yaml:"name"`
	BaseImage      string   `yaml:"base_image"`
	SystemPackages []string `yaml:"system_packages"`
	Manifest       string   `yaml:"manifest"`
	AppDir         string   `yaml:"app_dir"`
	Port           int      `yaml:"port"`
	Entrypoint     []string `yaml:"entrypoint"`
	GPUs           bool     `yaml:"gpus"`
}

// DefaultSpec is the descriptor applied to trees that ship without one:
// a CUDA-capable torch runtime serving a single Python entry point on 8080,
// with curl available for operational probes.
func DefaultSpec() *BuildSpec {
	return &BuildSpec{
		Name:           "app",
		BaseImage:      "pytorch/pytorch:1.13.1-cuda11.6-cudnn8-runtime",
		SystemPackages: []string{"curl"},
		Manifest:       "requirements.txt",
		AppDir:         ".",
		Port:           8080,
		Entrypoint:     []string{"python", "app.py"},
		GPUs:           true,
	}
}

// Load reads the descriptor at the root of dir, or returns DefaultSpec
// when the tree does not carry one.
func Load(dir string) (*BuildSpec, error) {
	path := filepath.Join(dir, DescriptorFileName)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSpec(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", DescriptorFileName, err)
	}
	return Parse(content)
}

// Parse decodes and validates a descriptor. Missing optional fields fall
// back to the defaults; a descriptor that fails validation is rejected.
func Parse(content []byte) (*BuildSpec, error) {
	bs := DefaultSpec()
	if err := yaml.UnmarshalStrict(content, bs); err != nil {
		return nil, fmt.Errorf("malformed build descriptor: %w", err)
	}
	if err := bs.Validate(); err != nil {
		return nil, err
	}
	return bs, nil
}

// Validate enforces the parts of the contract a descriptor can break
// before the daemon is ever contacted.
func (bs *BuildSpec) Validate() error {
	if bs.BaseImage == "" {
		return fmt.Errorf("build descriptor: base_image is required")
	}
	if strings.ContainsAny(bs.BaseImage, " \t\n") {
		return fmt.Errorf("build descriptor: base_image %q contains whitespace", bs.BaseImage)
	}
	if bs.Port <= 0 || bs.Port > 65535 {
		return fmt.Errorf("build descriptor: port %d is out of range", bs.Port)
	}
	if len(bs.Entrypoint) == 0 {
		return fmt.Errorf("build descriptor: entrypoint is required")
	}
	if bs.Manifest != "" && filepath.IsAbs(bs.Manifest) {
		return fmt.Errorf("build descriptor: manifest path %q must be relative to the application root", bs.Manifest)
	}
	if strings.HasPrefix(filepath.ToSlash(bs.Manifest), "../") {
		return fmt.Errorf("build descriptor: manifest path %q escapes the application root", bs.Manifest)
	}
	for _, pkg := range bs.SystemPackages {
		if pkg == "" || strings.ContainsAny(pkg, " \t\n;&|") {
			return fmt.Errorf("build descriptor: invalid system package name %q", pkg)
		}
	}
	if bs.AppDir == "" {
		bs.AppDir = "."
	}
	if bs.Name == "" {
		bs.Name = "app"
	}
	return nil
}
