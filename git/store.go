package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	formatcfg "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/storage"
)

// The primitives below are the only code that talks to the object store.
// Each one checks ctx first: storage calls themselves are not cancellable.

// branchRef returns the full ref name for a short branch name.
func branchRef(branch string) (plumbing.ReferenceName, error) {
	name := plumbing.NewBranchReferenceName(branch)
	if branch == "" || name.Validate() != nil {
		return "", WrapErrorf(ErrInvalidRef, "branch %q", branch)
	}
	return name, nil
}

// resolveRef returns the commit a ref points at, following symbolic refs.
// ok is false when the ref does not exist.
func (r *Repo) resolveRef(ctx context.Context, name plumbing.ReferenceName) (plumbing.Hash, bool, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, false, err
	}
	ref, err := storer.ResolveReference(r.repo.Storer, name)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, false, nil
	}
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("resolve %s: %w", name, err)
	}
	return ref.Hash(), true, nil
}

func (r *Repo) readBlob(ctx context.Context, h plumbing.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, err := object.GetBlob(r.repo.Storer, h)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	rd, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	defer rd.Close()

	content, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	return content, nil
}

// writeBlob stores content and returns its id. Writing identical content
// twice yields the same id.
func (r *Repo) writeBlob(ctx context.Context, content []byte) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, err
	}
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(content)))

	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	return r.storeObject(obj)
}

func (r *Repo) readTree(ctx context.Context, h plumbing.Hash) (*object.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tree, err := object.GetTree(r.repo.Storer, h)
	if err != nil {
		return nil, fmt.Errorf("read tree %s: %w", h, err)
	}
	return tree, nil
}

// writeTree stores a single tree level. Entries are sorted in git order.
func (r *Repo) writeTree(ctx context.Context, entries []object.TreeEntry) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, err
	}
	sortTreeEntries(entries)

	tree := &object.Tree{Entries: entries}
	obj := r.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode tree: %w", err)
	}
	return r.storeObject(obj)
}

// writeCommit stores a commit for tree. A zero parent makes a root commit.
func (r *Repo) writeCommit(
	ctx context.Context,
	tree, parent plumbing.Hash,
	author, committer Signature,
	message string,
) (plumbing.Hash, error) {
	if err := ctx.Err(); err != nil {
		return plumbing.ZeroHash, err
	}
	commit := &object.Commit{
		Author:    object.Signature{Name: author.Name, Email: author.Email, When: author.When},
		Committer: object.Signature{Name: committer.Name, Email: committer.Email, When: committer.When},
		Message:   message,
		TreeHash:  tree,
	}
	if !parent.IsZero() {
		commit.ParentHashes = []plumbing.Hash{parent}
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encode commit: %w", err)
	}
	return r.storeObject(obj)
}

func (r *Repo) storeObject(obj plumbing.EncodedObject) (plumbing.Hash, error) {
	h, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store %s: %w", obj.Type(), err)
	}
	return h, nil
}

// compareAndSwapRef points name at next only if it currently points at
// expected. A zero expected means the ref must not exist yet. Losing the race
// returns ErrConcurrentUpdate and leaves the ref untouched.
//
// The comparison and the write happen under git's <ref>.lock file, so
// separate Repo handles and other processes sharing the repository are
// serialized too. A held lock counts as a lost race.
func (r *Repo) compareAndSwapRef(ctx context.Context, name plumbing.ReferenceName, expected, next plumbing.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.casHook != nil {
		r.casHook()
	}

	r.casMu.Lock()
	defer r.casMu.Unlock()

	unlock, err := r.lockRef(name)
	if err != nil {
		return err
	}
	defer unlock()

	// Reference reads loose refs, then packed-refs.
	current, err := r.repo.Storer.Reference(name)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		current = nil
	case err != nil:
		return fmt.Errorf("read %s: %w", name, err)
	}

	newRef := plumbing.NewHashReference(name, next)
	if expected.IsZero() {
		if current != nil {
			return fmt.Errorf("%s now at %s: %w", name, current.Hash(), ErrConcurrentUpdate)
		}
		if err := r.repo.Storer.SetReference(newRef); err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		return nil
	}

	if current == nil || current.Hash() != expected {
		return fmt.Errorf("%s moved from %s: %w", name, expected, ErrConcurrentUpdate)
	}

	// CheckAndSetReference also locks the ref file itself, which covers
	// writers that do not take the lock file.
	err = r.repo.Storer.CheckAndSetReference(newRef, plumbing.NewHashReference(name, expected))
	if errors.Is(err, storage.ErrReferenceHasChanged) {
		return fmt.Errorf("%s moved from %s: %w", name, expected, ErrConcurrentUpdate)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", name, err)
	}
	return nil
}

// lockRef creates <ref>.lock exclusively, the way git does before it
// rewrites a ref. The returned func removes the lock.
func (r *Repo) lockRef(name plumbing.ReferenceName) (func(), error) {
	lockPath := name.String() + ".lock"
	if err := r.dotGit.MkdirAll(path.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("lock %s: %w", name, err)
	}

	f, err := r.dotGit.OpenFile(lockPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%s is locked by another writer: %w", name, ErrConcurrentUpdate)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", name, err)
	}

	return func() {
		_ = f.Close()
		if err := r.dotGit.Remove(lockPath); err != nil {
			r.log.Warn("failed to remove ref lock", "ref", name, "error", err)
		}
	}, nil
}

// config looks up key in the repository config, then the user's global
// config. ok is false when the key is unset in both.
func (r *Repo) config(ctx context.Context, key string) (value string, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	section, subsection, option, err := splitConfigKey(key)
	if err != nil {
		return "", false, err
	}

	local, err := r.repo.Config()
	if err != nil {
		return "", false, fmt.Errorf("read repository config: %w", err)
	}
	// Marshal syncs Raw with fields set programmatically.
	if _, err := local.Marshal(); err != nil {
		return "", false, fmt.Errorf("read repository config: %w", err)
	}
	if v, found := lookupRaw(local.Raw, section, subsection, option); found {
		return v, true, nil
	}

	global, err := config.LoadConfig(config.GlobalScope)
	if err != nil {
		r.log.Debug("global git config unavailable", "error", err)
		return "", false, nil
	}
	if v, found := lookupRaw(global.Raw, section, subsection, option); found {
		return v, true, nil
	}
	return "", false, nil
}

// splitConfigKey splits "section.option" or "section.sub.section.option".
func splitConfigKey(key string) (section, subsection, option string, err error) {
	first := strings.Index(key, ".")
	last := strings.LastIndex(key, ".")
	if first <= 0 || last == len(key)-1 {
		return "", "", "", WrapErrorf(ErrConfigMissing, "malformed config key %q", key)
	}
	section = key[:first]
	option = key[last+1:]
	if first != last {
		subsection = key[first+1 : last]
	}
	return section, subsection, option, nil
}

func lookupRaw(raw *formatcfg.Config, section, subsection, option string) (string, bool) {
	if raw == nil || !raw.HasSection(section) {
		return "", false
	}
	s := raw.Section(section)
	if subsection == "" {
		if !s.HasOption(option) {
			return "", false
		}
		return s.Option(option), true
	}
	if !s.HasSubsection(subsection) {
		return "", false
	}
	ss := s.Subsection(subsection)
	if !ss.HasOption(option) {
		return "", false
	}
	return ss.Option(option), true
}

// sortTreeEntries orders entries the way git does: directories compare as if
// their name ended in "/".
func sortTreeEntries(entries []object.TreeEntry) {
	key := func(e object.TreeEntry) string {
		if e.Mode == filemode.Dir {
			return e.Name + "/"
		}
		return e.Name
	}
	sort.Slice(entries, func(i, j int) bool {
		return key(entries[i]) < key(entries[j])
	})
}
