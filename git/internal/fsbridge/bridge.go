// Package fsbridge turns the fs.Filesystem abstraction into go-git storage.
// Repository state (objects, refs, config) always lives inside the filesystem
// passed by the caller, so the same code serves on-disk and in-memory repositories.
package fsbridge

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs"
	fsb "github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs/billy"
)

// MinCacheSize is used when a non-positive object cache size is requested.
const MinCacheSize = 100

// Layout is the storage and optional worktree of a repository.
type Layout struct {
	// Storage holds objects, refs and config.
	Storage *filesystem.Storage

	// Worktree is the checkout root, nil for bare repositories.
	// It is handed to go-git but never written by this module.
	Worktree billy.Filesystem
}

// ToBillyFilesystem converts an fs.Filesystem to a billy.Filesystem.
// The passed filesystem must be a billy.FS wrapper from the fs/billy package.
//
//nolint:ireturn // returns interface as required by billy.Filesystem interface
func ToBillyFilesystem(fsys fs.Filesystem) (billy.Filesystem, error) {
	billyFS, ok := fsys.(*fsb.FS)
	if !ok {
		return nil, fmt.Errorf("filesystem must be a billy.FS from fs/billy package, got %T", fsys)
	}
	return billyFS.Raw(), nil
}

// NewStorage creates git storage over billyFS with an LRU object cache.
func NewStorage(billyFS billy.Filesystem, cacheSize int) *filesystem.Storage {
	if cacheSize <= 0 {
		cacheSize = MinCacheSize
	}
	objCache := cache.NewObjectLRU(cache.FileSize(cacheSize))
	return filesystem.NewStorage(billyFS, objCache)
}

// NewLayout scopes fsys to workdir and places storage at its root for bare
// repositories, or under .git otherwise.
func NewLayout(fsys fs.Filesystem, workdir string, bare bool, cacheSize int) (*Layout, error) {
	billyFS, err := ToBillyFilesystem(fsys)
	if err != nil {
		return nil, fmt.Errorf("filesystem conversion failed: %w", err)
	}

	scopedFS, err := billyFS.Chroot(workdir)
	if err != nil {
		return nil, fmt.Errorf("failed to chroot to workdir %q: %w", workdir, err)
	}

	if bare {
		return &Layout{Storage: NewStorage(scopedFS, cacheSize)}, nil
	}

	dotGitFS, err := scopedFS.Chroot(".git")
	if err != nil {
		return nil, fmt.Errorf("failed to access .git directory: %w", err)
	}
	return &Layout{
		Storage:  NewStorage(dotGitFS, cacheSize),
		Worktree: scopedFS,
	}, nil
}
