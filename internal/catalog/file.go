package catalog

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/connectingdocs/match-engine/internal/model"
)

// File is the on-disk YAML catalog layout.
type File struct {
	Protocols []model.Protocol `yaml:"protocols"`
	Solutions []model.Solution `yaml:"solutions"`
}

// ReadFile parses and cleans a YAML catalog.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	f.Protocols, err = CleanAll(f.Protocols)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: load %s", path)
	}
	return &f, nil
}

// FileProvider serves the protocols of a YAML catalog read at construction.
type FileProvider struct {
	*StaticProvider
	File *File
}

// NewFileProvider loads the catalog at path.
func NewFileProvider(path string) (*FileProvider, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	zap.L().Info("catalog: loaded yaml catalog",
		zap.String("path", path),
		zap.Int("protocols", len(f.Protocols)),
	)
	return &FileProvider{StaticProvider: NewStaticProvider(f.Protocols), File: f}, nil
}
