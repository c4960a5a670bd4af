package git

import (
	"context"
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// stagedEntry is one file of the manifest being built.
type stagedEntry struct {
	hash plumbing.Hash
	mode filemode.FileMode
}

// stager holds the flat path manifest of the tree being built. It always
// equals the base tree with adds and deletes applied in call order, and blobs
// are written to the object store as soon as they are added.
type stager struct {
	repo    *Repo
	entries map[string]stagedEntry
}

// newStager seeds a manifest from the tree of base, or an empty one for a
// zero base.
func newStager(ctx context.Context, r *Repo, base plumbing.Hash) (*stager, error) {
	s := &stager{repo: r, entries: make(map[string]stagedEntry)}
	if base.IsZero() {
		return s, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(base)
	if err != nil {
		return nil, WrapErrorf(err, "read commit %s", base)
	}
	if err := s.flatten(ctx, commit.TreeHash, ""); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *stager) flatten(ctx context.Context, treeHash plumbing.Hash, prefix string) error {
	tree, err := s.repo.readTree(ctx, treeHash)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		p := path.Join(prefix, e.Name)
		if e.Mode == filemode.Dir {
			if err := s.flatten(ctx, e.Hash, p); err != nil {
				return err
			}
			continue
		}
		s.entries[p] = stagedEntry{hash: e.Hash, mode: e.Mode}
	}
	return nil
}

// add writes f's blob and stages it, replacing whatever occupied the path.
// A staged file at a parent path, or staged files below f.Path, are dropped
// so the manifest stays representable as a tree.
func (s *stager) add(ctx context.Context, f FileInfo) error {
	p, err := cleanPath(f.Path)
	if err != nil {
		return newError("add file", "", f.Path, err)
	}
	mode := f.Mode
	if mode == filemode.Empty {
		mode = filemode.Regular
	}
	if !validFileMode(mode) {
		return newError("add file", "", p, WrapErrorf(ErrInvalidPath, "unsupported mode %s", mode))
	}

	h, err := s.repo.writeBlob(ctx, f.Content)
	if err != nil {
		return newError("add file", "", p, err)
	}

	for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
		delete(s.entries, dir)
	}
	prefix := p + "/"
	for name := range s.entries {
		if strings.HasPrefix(name, prefix) {
			delete(s.entries, name)
		}
	}

	s.entries[p] = stagedEntry{hash: h, mode: mode}
	return nil
}

// remove unstages every path matched by pat and reports how many went.
func (s *stager) remove(pat Pattern) int {
	n := 0
	for name := range s.entries {
		if pat.Match(name) {
			delete(s.entries, name)
			n++
		}
	}
	return n
}
