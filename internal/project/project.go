// Package project locates and describes the flutter project to run.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the manifest every flutter project has.
const ManifestFile = "pubspec.yaml"

var ErrManifestNotFound = errors.New("not a valid Flutter project directory")

type Project struct {
	// Path is the project directory as given by the user
	Path string

	// AbsPath is the absolute project directory
	AbsPath string

	// Name is the package name from the manifest, if it could be read
	Name string

	// Description is the package description from the manifest
	Description string
}

type manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Load checks that path contains a manifest and reads the project
// metadata from it. Only the presence of the manifest is required, a
// manifest that cannot be parsed yields a project without a name.
func Load(path string) (*Project, error) {
	manifestPath := filepath.Join(path, ManifestFile)

	info, err := os.Stat(manifestPath)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s not found in %s", ErrManifestNotFound, ManifestFile, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}

	project := &Project{
		Path:    path,
		AbsPath: absPath,
	}

	if m, err := readManifest(manifestPath); err == nil {
		project.Name = m.Name
		project.Description = m.Description
	}

	return project, nil
}

func readManifest(path string) (manifest, error) {
	var m manifest

	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}

	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, err
	}

	return m, nil
}
