package git

import (
	"bytes"
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// FileInfo is one file to publish: a repository path, its bytes and its mode.
type FileInfo struct {
	// Path is slash separated and relative to the repository root.
	Path string

	Content []byte

	// Mode is filemode.Regular, filemode.Executable or filemode.Symlink.
	Mode filemode.FileMode
}

// NewFileInfo returns a regular file.
func NewFileInfo(p string, content []byte) FileInfo {
	return FileInfo{Path: p, Content: content, Mode: filemode.Regular}
}

// Equal reports whether path, content and mode all match.
func (f FileInfo) Equal(o FileInfo) bool {
	return f.Path == o.Path && f.Mode == o.Mode && bytes.Equal(f.Content, o.Content)
}

// cleanPath normalizes a repository path and rejects anything that cannot be
// stored in a tree.
func cleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", ErrInvalidPath
	}
	p = path.Clean(p)
	if p == "." {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." || part == ".git" {
			return "", ErrInvalidPath
		}
	}
	return p, nil
}

func validFileMode(m filemode.FileMode) bool {
	switch m {
	case filemode.Regular, filemode.Executable, filemode.Symlink, filemode.Deprecated:
		return true
	}
	return false
}
