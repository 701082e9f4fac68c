package export

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Store saves artifacts into a filesystem. Artifacts appear under their
// final name only once fully written.
type Store struct {
	fs billy.Filesystem
}

func NewStore(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// NewOSStore stores artifacts in dir on disk.
func NewOSStore(dir string) *Store {
	return NewStore(osfs.New(dir))
}

// NewMemStore stores artifacts in memory.
func NewMemStore() *Store {
	return NewStore(memfs.New())
}

// Save writes a and returns its path within the store's root.
func (s *Store) Save(a *Artifact) (string, error) {
	tmp := a.Filename + ".partial"
	if err := util.WriteFile(s.fs, tmp, a.Data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("save %s: %w", a.Filename, err)
	}
	if err := s.fs.Rename(tmp, a.Filename); err != nil {
		_ = s.fs.Remove(tmp)
		return "", fmt.Errorf("save %s: %w", a.Filename, err)
	}
	return s.fs.Join(s.fs.Root(), a.Filename), nil
}

// Open reads a saved artifact back.
func (s *Store) Open(name string) ([]byte, error) {
	return util.ReadFile(s.fs, name)
}

// List returns the names of saved artifacts.
func (s *Store) List() ([]string, error) {
	infos, err := s.fs.ReadDir("/")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, fi := range infos {
		if !fi.IsDir() {
			names = append(names, fi.Name())
		}
	}
	return names, nil
}
