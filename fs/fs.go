// Package fs defines the filesystem abstraction used to read publish sources
// and to back on-disk or in-memory repositories.
// Implementations should behave consistently with the standard library.
package fs

import (
	"os"
	"path/filepath"
)

// Filesystem is the set of filesystem operations the publishing packages rely on.
// Paths use the host separator; Walk visits entries in lexical order.
type Filesystem interface {
	Exists(path string) (bool, error)
	Lstat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(dirname string) ([]os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	Remove(name string) error
	Stat(name string) (os.FileInfo, error)
	Symlink(target, link string) error
	Walk(root string, walkFn filepath.WalkFunc) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
}

// ExecutableChecker is an optional capability of a Filesystem.
// Filesystems on platforms without an executable bit report false for every path.
type ExecutableChecker interface {
	IsExecutable(path string) (bool, error)
}
