package ruleset

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scan-io-git/sarifer/internal/rules"
	"github.com/scan-io-git/sarifer/pkg/shared/config"
	serrors "github.com/scan-io-git/sarifer/pkg/shared/errors"
)

// Loader reads the rule definitions that belong to a project root.
type Loader interface {
	Load(root string) ([]rules.Definition, error)
}

// DirLoader discovers definition files under <root>/<FolderName>, recursively.
type DirLoader struct {
	FolderName string
	Extension  string
}

// NewDirLoader returns a DirLoader following the rules directive of cfg.
func NewDirLoader(cfg config.Rules) *DirLoader {
	return &DirLoader{
		FolderName: config.SetThen(cfg.FolderName, config.DefaultRulesFolder),
		Extension:  config.SetThen(cfg.Extension, config.DefaultRulesExtension),
	}
}

// Dir returns the rules directory of root.
func (l *DirLoader) Dir(root string) string {
	return filepath.Join(root, l.FolderName)
}

// Load returns nil definitions and no error when the rules directory does not exist.
func (l *DirLoader) Load(root string) ([]rules.Definition, error) {
	dir := l.Dir(root)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), l.Extension) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, &serrors.RuleLoadError{Path: dir, Err: err}
	}
	sort.Strings(paths)

	var defs []rules.Definition
	for _, path := range paths {
		fileDefs, err := rules.LoadFile(path)
		if err != nil {
			return nil, &serrors.RuleLoadError{Path: path, Err: err}
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}
