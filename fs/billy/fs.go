// Package billy implements fs.Filesystem on top of go-billy, covering both
// OS-backed and in-memory filesystems.
package billy

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	parentfs "github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs"
)

var (
	_ parentfs.Filesystem        = (*FS)(nil)
	_ parentfs.ExecutableChecker = (*FS)(nil)
)

// FS implements the Filesystem interface using go-billy.
type FS struct {
	fs billy.Filesystem
}

// Exists implements Filesystem.Exists.
func (b *FS) Exists(path string) (bool, error) {
	_, err := b.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("billy: stat %q: %w", path, err)
	}
}

// IsExecutable implements ExecutableChecker.IsExecutable.
// Windows has no executable bit, so every file reports false there.
func (b *FS) IsExecutable(path string) (bool, error) {
	if runtime.GOOS == "windows" {
		return false, nil
	}
	info, err := b.fs.Stat(path)
	if err != nil {
		return false, fmt.Errorf("billy: stat %q: %w", path, err)
	}
	return info.Mode().Perm()&0o111 != 0, nil
}

// Lstat implements Filesystem.Lstat.
func (b *FS) Lstat(name string) (os.FileInfo, error) {
	info, err := b.fs.Lstat(name)
	if err != nil {
		return nil, fmt.Errorf("billy: lstat %q: %w", name, err)
	}
	return info, nil
}

// MkdirAll implements Filesystem.MkdirAll.
func (b *FS) MkdirAll(path string, perm os.FileMode) error {
	if err := b.fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("billy: mkdirall %q: %w", path, err)
	}
	return nil
}

// ReadDir implements Filesystem.ReadDir.
func (b *FS) ReadDir(dirname string) ([]os.FileInfo, error) {
	list, err := b.fs.ReadDir(dirname)
	if err != nil {
		return nil, fmt.Errorf("billy: readdir %q: %w", dirname, err)
	}
	return list, nil
}

// ReadFile implements Filesystem.ReadFile.
func (b *FS) ReadFile(path string) ([]byte, error) {
	bts, err := util.ReadFile(b.fs, path)
	if err != nil {
		return nil, fmt.Errorf("billy: readfile %q: %w", path, err)
	}
	return bts, nil
}

// Remove implements Filesystem.Remove.
func (b *FS) Remove(name string) error {
	if err := b.fs.Remove(name); err != nil {
		return fmt.Errorf("billy: remove %q: %w", name, err)
	}
	return nil
}

// Stat implements Filesystem.Stat.
func (b *FS) Stat(name string) (os.FileInfo, error) {
	info, err := b.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("billy: stat %q: %w", name, err)
	}
	return info, nil
}

// Symlink implements Filesystem.Symlink.
func (b *FS) Symlink(target, link string) error {
	if err := b.fs.Symlink(target, link); err != nil {
		return fmt.Errorf("billy: symlink %q -> %q: %w", link, target, err)
	}
	return nil
}

// Walk implements Filesystem.Walk.
// Errors returned by walkFn are passed through unwrapped so callers can
// recognise their own sentinels.
func (b *FS) Walk(root string, walkFn filepath.WalkFunc) error {
	var fnErr error
	err := util.Walk(b.fs, root, func(path string, info os.FileInfo, err error) error {
		if e := walkFn(path, info, err); e != nil {
			if e != filepath.SkipDir {
				fnErr = e
			}
			return e
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("billy: walk %q: %w", root, err)
	}
	return nil
}

// WriteFile implements Filesystem.WriteFile.
func (b *FS) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if err := util.WriteFile(b.fs, filename, data, perm); err != nil {
		return fmt.Errorf("billy: writefile %q: %w", filename, err)
	}
	return nil
}

// Raw returns the underlying go-billy filesystem.
//
//nolint:ireturn // returning interface here is intentional to expose the adapter target.
func (b *FS) Raw() billy.Filesystem {
	return b.fs
}

// NewFS creates a new FS using the given go-billy filesystem.
func NewFS(fsys billy.Filesystem) *FS {
	return &FS{
		fs: fsys,
	}
}

// NewInMemoryFS creates a new in-memory filesystem.
func NewInMemoryFS() *FS {
	return &FS{
		fs: memfs.New(),
	}
}

// NewOSFS creates a new OS filesystem rooted at path.
func NewOSFS(path string) *FS {
	return &FS{
		fs: osfs.New(path),
	}
}
