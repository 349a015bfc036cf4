package data

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/udisondev/scriptdev/internal/encounter"
)

//go:embed encounters/*.yaml
var embedded embed.FS

// Embedded returns the definitions shipped with the binary as a read-only afero.Fs
// rooted at the encounters directory.
func Embedded() afero.Fs {
	sub, err := fs.Sub(embedded, "encounters")
	if err != nil {
		panic(err) // the embed pattern guarantees the directory
	}
	return afero.FromIOFS{FS: sub}
}

// Loader reads definition files from an afero.Fs.
type Loader struct {
	fs afero.Fs
}

// NewLoader returns a loader over fsys. Use afero.NewOsFs() for a directory on disk.
func NewLoader(fsys afero.Fs) *Loader {
	return &Loader{fs: fsys}
}

// IsDefinitionFile reports whether path has a YAML extension.
func IsDefinitionFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFile loads and compiles one definition.
func (l *Loader) LoadFile(path string) (*encounter.Definition, error) {
	src, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	def, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// LoadDir loads every definition file directly under dir. All files are attempted;
// failures are joined into the returned error alongside the definitions that loaded.
func (l *Loader) LoadDir(dir string) (map[string]*encounter.Definition, error) {
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("reading definitions dir %s: %w", dir, err)
	}

	defs := make(map[string]*encounter.Definition, len(infos))
	origin := make(map[string]string, len(infos))
	var errs []error

	for _, info := range infos {
		if info.IsDir() || !IsDefinitionFile(info.Name()) {
			continue
		}
		path := filepath.Join(dir, info.Name())
		def, err := l.LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := origin[def.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: encounter %q already defined in %s", path, def.Name, prev))
			continue
		}
		defs[def.Name] = def
		origin[def.Name] = path
	}

	slog.Debug("encounter definitions loaded", "dir", dir, "count", len(defs), "errors", len(errs))
	return defs, errors.Join(errs...)
}

// Names returns the sorted keys of defs.
func Names(defs map[string]*encounter.Definition) []string {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
