package git

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// ChangeAction says what a commit did to a path.
type ChangeAction int

const (
	// ChangeAdded means the path is new in the commit.
	ChangeAdded ChangeAction = iota
	// ChangeModified means the content or mode of the path changed.
	ChangeModified
	// ChangeDeleted means the path was removed.
	ChangeDeleted
)

// String returns the one-letter form used by git status: A, M or D.
func (a ChangeAction) String() string {
	switch a {
	case ChangeAdded:
		return "A"
	case ChangeModified:
		return "M"
	case ChangeDeleted:
		return "D"
	default:
		return "?"
	}
}

// Change is one path touched by a commit.
type Change struct {
	Path   string
	Action ChangeAction
}

// HistoryEntry is a commit on a branch together with the paths it changed
// relative to its first parent.
type HistoryEntry struct {
	Hash      string
	Message   string
	Author    Signature
	Committer Signature
	Changes   []Change
}

// Subject returns the first line of the commit message.
func (e HistoryEntry) Subject() string {
	subject, _, _ := strings.Cut(e.Message, "\n")
	return subject
}

// HistoryFilter narrows the result of History.
type HistoryFilter struct {
	// MaxCount limits the number of entries. If 0, the whole chain is returned.
	MaxCount int

	// Since stops the walk at the first commit committed before this time.
	Since *time.Time

	// Paths keeps only commits that changed a matching path, and narrows
	// each entry's Changes to the matching paths.
	Paths []Pattern
}

// History lists the commits of branch, newest first, following first
// parents. Every commit a publish creates has the previous tip as its only
// parent, so this is the publish log of the branch.
func (r *Repo) History(ctx context.Context, branch string, f HistoryFilter) ([]HistoryEntry, error) {
	const op = "history"

	for _, p := range f.Paths {
		if err := p.Validate(); err != nil {
			return nil, newError(op, branch, "", err)
		}
	}

	ref, err := branchRef(branch)
	if err != nil {
		return nil, newError(op, branch, "", err)
	}
	tip, ok, err := r.resolveRef(ctx, ref)
	if err != nil {
		return nil, newError(op, branch, "", err)
	}
	if !ok {
		return nil, newError(op, branch, "", ErrBranchMissing)
	}

	var entries []HistoryEntry
	for hash := tip; !hash.IsZero(); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		commit, err := r.repo.CommitObject(hash)
		if err != nil {
			return nil, newError(op, branch, "", WrapErrorf(err, "read commit %s", hash))
		}
		if f.Since != nil && commit.Committer.When.Before(*f.Since) {
			break
		}

		changes, err := r.changesOf(ctx, commit)
		if err != nil {
			return nil, newError(op, branch, "", err)
		}
		changes = filterChanges(changes, f.Paths)

		if len(f.Paths) == 0 || len(changes) > 0 {
			entries = append(entries, HistoryEntry{
				Hash:      commit.Hash.String(),
				Message:   commit.Message,
				Author:    fromObjectSignature(commit.Author),
				Committer: fromObjectSignature(commit.Committer),
				Changes:   changes,
			})
			if f.MaxCount > 0 && len(entries) >= f.MaxCount {
				break
			}
		}

		hash = plumbing.ZeroHash
		if len(commit.ParentHashes) > 0 {
			hash = commit.ParentHashes[0]
		}
	}

	return entries, nil
}

// changesOf diffs a commit's tree against its first parent's. A root
// commit is diffed against the empty tree.
func (r *Repo) changesOf(ctx context.Context, c *object.Commit) ([]Change, error) {
	to, err := c.Tree()
	if err != nil {
		return nil, WrapErrorf(err, "read tree of %s", c.Hash)
	}

	from := &object.Tree{}
	if len(c.ParentHashes) > 0 {
		parent, err := r.repo.CommitObject(c.ParentHashes[0])
		if err != nil {
			return nil, WrapErrorf(err, "read parent of %s", c.Hash)
		}
		if from, err = parent.Tree(); err != nil {
			return nil, WrapErrorf(err, "read tree of %s", parent.Hash)
		}
	}

	diff, err := object.DiffTreeWithOptions(ctx, from, to, nil)
	if err != nil {
		return nil, WrapErrorf(err, "diff %s", c.Hash)
	}

	changes := make([]Change, 0, len(diff))
	for _, d := range diff {
		action, err := d.Action()
		if err != nil {
			return nil, WrapErrorf(err, "diff %s", c.Hash)
		}
		switch action {
		case merkletrie.Insert:
			changes = append(changes, Change{Path: d.To.Name, Action: ChangeAdded})
		case merkletrie.Delete:
			changes = append(changes, Change{Path: d.From.Name, Action: ChangeDeleted})
		default:
			changes = append(changes, Change{Path: d.To.Name, Action: ChangeModified})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}

func filterChanges(changes []Change, patterns []Pattern) []Change {
	if len(patterns) == 0 {
		return changes
	}
	var kept []Change
	for _, c := range changes {
		for _, p := range patterns {
			if p.Match(c.Path) {
				kept = append(kept, c)
				break
			}
		}
	}
	return kept
}

func fromObjectSignature(s object.Signature) Signature {
	return Signature{Name: s.Name, Email: s.Email, When: s.When}
}
