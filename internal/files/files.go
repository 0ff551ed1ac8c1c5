// Package files is the file-operation collaborator: a narrow interface the
// HTTP layer invokes only after the request gate has authorized the caller.
package files

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Info describes one directory entry, with Path relative to the root in
// the same slash-separated form clients send.
type Info struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	IsDir   bool      `json:"isDirectory"`
	ModTime time.Time `json:"modifiedAt"`
}

// Manager is the capability-gated surface the handlers consume. Every
// path argument is a client-relative path; implementations decide how it
// maps to real storage.
type Manager interface {
	List(dir string) ([]Info, error)
	CreateDir(parent, name string) error
	Delete(paths []string) error
	Rename(oldPath, newName string) error
	Move(paths []string, destDir string) error
	Archive(paths []string, destDir, name string) (string, error)
	Save(dir, filename string, src io.Reader) error
	Search(dir, query string, limit int) ([]Info, error)
	Resolve(p string) (string, error)
}

// DiskManager serves a directory tree rooted at a configured jail
// directory. Client paths are resolved strictly inside the root.
type DiskManager struct {
	root string
}

func NewDiskManager(root string) (*DiskManager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, err
	}
	return &DiskManager{root: abs}, nil
}

func (m *DiskManager) List(dir string) ([]Info, error) {
	local, err := m.resolve(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(local)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Name:    e.Name(),
			Path:    path.Join("/", dir, e.Name()),
			Size:    fi.Size(),
			IsDir:   e.IsDir(),
			ModTime: fi.ModTime(),
		})
	}
	// Directories first, then lexical, the order the UI shows.
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].IsDir != infos[j].IsDir {
			return infos[i].IsDir
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

func (m *DiskManager) CreateDir(parent, name string) error {
	local, err := m.resolve(path.Join(parent, name))
	if err != nil {
		return err
	}
	return os.MkdirAll(local, 0755)
}

func (m *DiskManager) Delete(paths []string) error {
	for _, p := range paths {
		local, err := m.resolve(p)
		if err != nil {
			return err
		}
		if err := os.RemoveAll(local); err != nil {
			return err
		}
	}
	return nil
}

func (m *DiskManager) Rename(oldPath, newName string) error {
	local, err := m.resolve(oldPath)
	if err != nil {
		return err
	}
	dest, err := m.resolve(path.Join(path.Dir(oldPath), newName))
	if err != nil {
		return err
	}
	return os.Rename(local, dest)
}

func (m *DiskManager) Move(paths []string, destDir string) error {
	for _, p := range paths {
		local, err := m.resolve(p)
		if err != nil {
			return err
		}
		dest, err := m.resolve(path.Join(destDir, path.Base(p)))
		if err != nil {
			return err
		}
		if err := os.Rename(local, dest); err != nil {
			return err
		}
	}
	return nil
}

// Archive zips the named paths into <destDir>/<name>.zip and returns the
// archive's client-relative path.
func (m *DiskManager) Archive(paths []string, destDir, name string) (string, error) {
	if name == "" {
		name = "archive"
	}
	relOut := path.Join(destDir, name+".zip")
	out, err := m.resolve(relOut)
	if err != nil {
		return "", err
	}

	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	for _, p := range paths {
		local, err := m.resolve(p)
		if err != nil {
			return "", err
		}
		if err := addToZip(zw, local, path.Base(p)); err != nil {
			return "", err
		}
	}
	return path.Join("/", relOut), nil
}

func addToZip(zw *zip.Writer, local, nameInZip string) error {
	fi, err := os.Stat(local)
	if err != nil {
		return err
	}

	if fi.IsDir() {
		entries, err := os.ReadDir(local)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := addToZip(zw, filepath.Join(local, e.Name()), path.Join(nameInZip, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	src, err := os.Open(local)
	if err != nil {
		return err
	}
	defer src.Close()

	w, err := zw.Create(nameInZip)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}

func (m *DiskManager) Save(dir, filename string, src io.Reader) error {
	local, err := m.resolve(path.Join(dir, path.Base(filename)))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return err
	}

	dst, err := os.Create(local)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// Search walks the tree under dir and collects entries whose name contains
// query, case-insensitively. The walk stops once limit results are found.
func (m *DiskManager) Search(dir, query string, limit int) ([]Info, error) {
	local, err := m.resolve(dir)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	results := make([]Info, 0, limit)
	err = filepath.WalkDir(local, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if len(results) >= limit {
			return fs.SkipAll
		}
		if p == local {
			return nil
		}
		if !strings.Contains(strings.ToLower(d.Name()), needle) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(m.root, p)
		if err != nil {
			return nil
		}
		results = append(results, Info{
			Name:    d.Name(),
			Path:    "/" + filepath.ToSlash(rel),
			Size:    fi.Size(),
			IsDir:   d.IsDir(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Resolve maps a client path to the absolute local path, for downloads.
func (m *DiskManager) Resolve(p string) (string, error) {
	return m.resolve(p)
}
