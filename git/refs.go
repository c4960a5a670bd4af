package git

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GetConfig returns a git configuration value. key is "section.option" or
// "section.subsection.option". The repository config is consulted first,
// then the user's global config.
func (r *Repo) GetConfig(ctx context.Context, key string) (string, error) {
	v, ok, err := r.config(ctx, key)
	if err != nil {
		return "", newError("get config "+key, "", "", err)
	}
	if !ok {
		return "", newError("get config "+key, "", "", ErrConfigMissing)
	}
	return v, nil
}

// LatestCommit returns the commit id at the tip of branch.
func (r *Repo) LatestCommit(ctx context.Context, branch string) (string, error) {
	ref, err := branchRef(branch)
	if err != nil {
		return "", newError("latest commit", branch, "", err)
	}
	h, ok, err := r.resolveRef(ctx, ref)
	if err != nil {
		return "", newError("latest commit", branch, "", err)
	}
	if !ok {
		return "", newError("latest commit", branch, "", ErrBranchMissing)
	}
	return h.String(), nil
}

// FileMode returns the mode of p in branch's tree. The root ("") and every
// directory report filemode.Dir; a trailing slash is ignored.
func (r *Repo) FileMode(ctx context.Context, branch, p string) (filemode.FileMode, error) {
	entry, err := r.lookup(ctx, "file mode", branch, p)
	if err != nil {
		return filemode.Empty, err
	}
	if entry == nil {
		return filemode.Dir, nil
	}
	return entry.Mode, nil
}

// ReadFile returns the content of the file at p in branch's tree. For
// symlinks that is the link target.
func (r *Repo) ReadFile(ctx context.Context, branch, p string) ([]byte, error) {
	entry, err := r.lookup(ctx, "read file", branch, p)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Mode == filemode.Dir || entry.Mode == filemode.Submodule {
		return nil, newError("read file", branch, p, WrapError(ErrInvalidPath, "not a file"))
	}
	content, err := r.readBlob(ctx, entry.Hash)
	if err != nil {
		return nil, newError("read file", branch, p, err)
	}
	return content, nil
}

// ReadFileText is ReadFile for callers that want a string.
func (r *Repo) ReadFileText(ctx context.Context, branch, p string) (string, error) {
	content, err := r.ReadFile(ctx, branch, p)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// lookup finds p in branch's tree. A nil entry with a nil error is the root.
func (r *Repo) lookup(ctx context.Context, op, branch, p string) (*object.TreeEntry, error) {
	ref, err := branchRef(branch)
	if err != nil {
		return nil, newError(op, branch, p, err)
	}
	h, ok, err := r.resolveRef(ctx, ref)
	if err != nil {
		return nil, newError(op, branch, p, err)
	}
	if !ok {
		return nil, newError(op, branch, p, fmt.Errorf("%w: %w", ErrPathNotFound, ErrBranchMissing))
	}

	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return nil, nil
	}
	clean, err := cleanPath(trimmed)
	if err != nil {
		return nil, newError(op, branch, p, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(h)
	if err != nil {
		return nil, newError(op, branch, p, err)
	}
	tree, err := r.readTree(ctx, commit.TreeHash)
	if err != nil {
		return nil, newError(op, branch, p, err)
	}
	entry, err := tree.FindEntry(clean)
	if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return nil, newError(op, branch, p, ErrPathNotFound)
	}
	if err != nil {
		return nil, newError(op, branch, p, err)
	}
	return entry, nil
}

// RefKind classifies references.
type RefKind int

const (
	// RefBranch is a local branch (refs/heads/*).
	RefBranch RefKind = iota

	// RefRemoteBranch is a remote tracking branch (refs/remotes/*/*).
	RefRemoteBranch

	// RefTag is a tag (refs/tags/*).
	RefTag

	// RefCommit is a bare commit id.
	RefCommit

	// RefOther is anything else, HEAD included.
	RefOther
)

// String returns a human-readable string representation of the RefKind.
func (k RefKind) String() string {
	switch k {
	case RefBranch:
		return "branch"
	case RefRemoteBranch:
		return "remote-branch"
	case RefTag:
		return "tag"
	case RefCommit:
		return "commit"
	case RefOther:
		return "other"
	default:
		return "unknown"
	}
}

// ResolvedRef is a revision resolved to a commit.
type ResolvedRef struct {
	Kind RefKind

	// Hash is the full commit id.
	Hash string

	// CanonicalName is the full ref name, or the hash for RefCommit.
	CanonicalName string
}

func kindOf(name plumbing.ReferenceName) RefKind {
	switch {
	case name.IsBranch():
		return RefBranch
	case name.IsRemote():
		return RefRemoteBranch
	case name.IsTag():
		return RefTag
	default:
		return RefOther
	}
}

// Refs lists the short names of refs of the given kind, sorted. A non-empty
// pattern filters names with path.Match, e.g. "origin/*".
func (r *Repo) Refs(ctx context.Context, kind RefKind, pattern string) ([]string, error) {
	if pattern != "" {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, WrapErrorf(ErrInvalidPattern, "ref pattern %q", pattern)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	refs, err := r.repo.References()
	if err != nil {
		return nil, WrapError(err, "failed to get references")
	}
	defer refs.Close()

	var names []string
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if kindOf(ref.Name()) != kind {
			return nil
		}
		short := ref.Name().Short()
		if pattern != "" {
			if ok, _ := path.Match(pattern, short); !ok {
				return nil
			}
		}
		names = append(names, short)
		return nil
	})
	if err != nil {
		return nil, WrapError(err, "failed to iterate references")
	}

	sort.Strings(names)
	return names, nil
}

// Resolve resolves any revision git understands (branch, tag, remote branch,
// HEAD, full or abbreviated hash) to a commit.
func (r *Repo) Resolve(ctx context.Context, rev string) (*ResolvedRef, error) {
	if rev == "" {
		return nil, WrapError(ErrInvalidRef, "revision cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, newError("resolve", rev, "", ErrResolveFailed)
	}

	resolved := &ResolvedRef{Kind: RefCommit, Hash: hash.String(), CanonicalName: hash.String()}
	if rev == "HEAD" {
		resolved.Kind, resolved.CanonicalName = RefOther, "HEAD"
		return resolved, nil
	}

	// Same lookup order as git rev-parse: the name as given, then tags,
	// heads and remotes.
	for _, name := range []plumbing.ReferenceName{
		plumbing.ReferenceName(rev),
		plumbing.NewTagReferenceName(rev),
		plumbing.NewBranchReferenceName(rev),
		plumbing.ReferenceName("refs/remotes/" + rev),
	} {
		if _, err := r.repo.Storer.Reference(name); err == nil {
			resolved.Kind, resolved.CanonicalName = kindOf(name), name.String()
			return resolved, nil
		}
	}
	return resolved, nil
}
