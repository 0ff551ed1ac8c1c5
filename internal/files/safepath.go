package files

import (
	"errors"
	"path/filepath"
	"strings"
)

var ErrPathEscapesRoot = errors.New("path escapes root")

// resolve maps a client-provided path to a local filesystem path under the
// manager's root, rejecting any traversal outside it.
func (m *DiskManager) resolve(userPath string) (string, error) {
	// Force relative paths.
	p := strings.TrimLeft(userPath, "/\\")
	joined := filepath.Join(m.root, filepath.FromSlash(p))
	joined = filepath.Clean(joined)

	if !isWithin(m.root, joined) {
		return "", ErrPathEscapesRoot
	}
	return joined, nil
}

func isWithin(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if root == candidate {
		return true
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(candidate, root)
}
