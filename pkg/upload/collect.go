package upload

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/denormal/go-gitignore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Filter decides which files under a directory argument get uploaded. Files
// named explicitly are always taken, as long as they are PDFs.
type Filter struct {
	MaxFileSize      int64    `yaml:"max-file-size,omitempty"`
	ExcludeDirs      []string `yaml:"exclude-dirs,omitempty"`
	DisableGitIgnore bool     `yaml:"disable-gitignore,omitempty"`
}

type FilterOption func(*Filter)

var DefaultExcludedDirs = []string{".git", ".svn", "node_modules", "vendor", ".idea", ".vscode"}

const DefaultMaxFileSize = 64 << 20

func NewFilter(options ...FilterOption) *Filter {
	f := &Filter{
		MaxFileSize: DefaultMaxFileSize,
		ExcludeDirs: append([]string(nil), DefaultExcludedDirs...),
	}
	for _, option := range options {
		option(f)
	}
	return f
}

func WithMaxFileSize(size int64) FilterOption {
	return func(f *Filter) {
		f.MaxFileSize = size
	}
}

func WithExcludeDirs(dirs []string) FilterOption {
	return func(f *Filter) {
		f.ExcludeDirs = append(f.ExcludeDirs, dirs...)
	}
}

func WithDisableGitIgnore(disable bool) FilterOption {
	return func(f *Filter) {
		f.DisableGitIgnore = disable
	}
}

// Collect expands paths into the PDF files to upload. Directories are walked
// in lexical order; duplicates are dropped.
func (f *Filter) Collect(paths []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrap(err, "stat upload path")
		}
		if !info.IsDir() {
			if !isPDF(p) {
				return nil, errors.Wrap(ErrNotPDF, filepath.Base(p))
			}
			add(p)
			continue
		}
		found, err := f.walk(p)
		if err != nil {
			return nil, err
		}
		for _, q := range found {
			add(q)
		}
	}
	return out, nil
}

func (f *Filter) walk(root string) ([]string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolve directory")
	}
	var ignore gitignore.GitIgnore
	if !f.DisableGitIgnore {
		ignore, err = gitignore.NewRepository(abs)
		if err != nil {
			return nil, errors.Wrap(err, "read .gitignore files")
		}
	}

	var found []string
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == abs {
			return nil
		}
		if ignore != nil {
			if m := ignore.Match(p); m != nil && m.Ignore() {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			if f.isExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isPDF(p) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if f.MaxFileSize > 0 && info.Size() > f.MaxFileSize {
			log.Warn().Str("component", "upload").Str("file", p).Int64("size", info.Size()).Msg("skipping large file")
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		found = append(found, filepath.Join(root, rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", root)
	}
	return found, nil
}

func (f *Filter) isExcludedDir(name string) bool {
	for _, d := range f.ExcludeDirs {
		if name == d {
			return true
		}
	}
	return false
}

func isPDF(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".pdf")
}
