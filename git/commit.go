package git

import (
	"context"
	"errors"
	"iter"

	"github.com/go-git/go-git/v5/plumbing"
)

// CommitState is the lifecycle state of a Commit.
type CommitState int8

const (
	// StateOpen accepts staging calls.
	StateOpen CommitState = iota
	// StateFinished means the branch now points at the new commit.
	StateFinished
	// StateAborted means nothing was published.
	StateAborted
)

// String returns a human-readable name for the state.
func (s CommitState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// CommitOption customises a Commit.
type CommitOption func(*commitConfig)

type commitConfig struct {
	timestamp *int64
	author    *Signature
	committer *Signature
}

// WithTimestamp pins author and committer time to unix seconds, for
// reproducible output.
func WithTimestamp(unix int64) CommitOption {
	return func(c *commitConfig) { c.timestamp = &unix }
}

// WithAuthor overrides the author taken from user.name and user.email.
func WithAuthor(sig Signature) CommitOption {
	return func(c *commitConfig) { c.author = &sig }
}

// WithCommitter sets a committer different from the author.
func WithCommitter(sig Signature) CommitOption {
	return func(c *commitConfig) { c.committer = &sig }
}

// Commit is a transaction that publishes one new commit on a branch.
//
// The branch tip is captured when the Commit is opened; Finish advances the
// branch from that tip with a compare-and-swap and fails with
// ErrConcurrentUpdate if another writer got there first. A Commit leaves the
// open state exactly once and is not safe for concurrent use.
type Commit struct {
	repo      *Repo
	branch    string
	ref       plumbing.ReferenceName
	message   string
	base      plumbing.Hash
	timestamp *int64
	author    Signature
	committer Signature

	state CommitState
	stage *stager
	hash  plumbing.Hash
}

// NewCommit opens a Commit on branch. The branch does not need to exist;
// a missing branch is created by Finish with a root commit.
func (r *Repo) NewCommit(ctx context.Context, branch, message string, opts ...CommitOption) (*Commit, error) {
	ref, err := branchRef(branch)
	if err != nil {
		return nil, newError("open commit", branch, "", err)
	}

	var cfg commitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	author := Signature{}
	if cfg.author != nil {
		author = *cfg.author
	} else {
		author, err = r.defaultSignature(ctx)
		if err != nil {
			return nil, newError("open commit", branch, "", err)
		}
	}
	committer := author
	if cfg.committer != nil {
		committer = *cfg.committer
	}

	base, _, err := r.resolveRef(ctx, ref)
	if err != nil {
		return nil, newError("open commit", branch, "", err)
	}

	r.log.Debug("commit opened", "branch", branch, "base", base)
	return &Commit{
		repo:      r,
		branch:    branch,
		ref:       ref,
		message:   message,
		base:      base,
		timestamp: cfg.timestamp,
		author:    author,
		committer: committer,
	}, nil
}

// defaultSignature builds the author from user.name and user.email, filling
// gaps from Options.DefaultAuthor.
func (r *Repo) defaultSignature(ctx context.Context) (Signature, error) {
	name, _, err := r.config(ctx, "user.name")
	if err != nil {
		return Signature{}, err
	}
	email, _, err := r.config(ctx, "user.email")
	if err != nil {
		return Signature{}, err
	}

	if fallback := r.options.DefaultAuthor; fallback != nil {
		if name == "" {
			name = fallback.Name
		}
		if email == "" {
			email = fallback.Email
		}
	}
	if name == "" || email == "" {
		return Signature{}, WrapError(ErrConfigMissing, "user.name and user.email must be set")
	}
	return Signature{Name: name, Email: email}, nil
}

// Branch returns the branch being published.
func (c *Commit) Branch() string { return c.branch }

// Base returns the tip captured at open, or "" for a new branch.
func (c *Commit) Base() string {
	if c.base.IsZero() {
		return ""
	}
	return c.base.String()
}

// State returns the lifecycle state.
func (c *Commit) State() CommitState { return c.state }

// Hash returns the published commit id once finished, else "".
func (c *Commit) Hash() string {
	if c.state != StateFinished {
		return ""
	}
	return c.hash.String()
}

func (c *Commit) ensureOpen(op string) error {
	if c.state != StateOpen {
		return newError(op, c.branch, "", ErrTransactionClosed)
	}
	return nil
}

// staged seeds the stager from the base tree on first use.
func (c *Commit) staged(ctx context.Context) (*stager, error) {
	if c.stage != nil {
		return c.stage, nil
	}
	s, err := newStager(ctx, c.repo, c.base)
	if err != nil {
		return nil, newError("seed commit", c.branch, "", err)
	}
	c.repo.log.Debug("stager seeded", "branch", c.branch, "files", len(s.entries))
	c.stage = s
	return s, nil
}

// AddFile stages f, overwriting any file staged or inherited at its path.
func (c *Commit) AddFile(ctx context.Context, f FileInfo) error {
	if err := c.ensureOpen("add file"); err != nil {
		return err
	}
	s, err := c.staged(ctx)
	if err != nil {
		return err
	}
	if err := s.add(ctx, f); err != nil {
		var ge *GitError
		if errors.As(err, &ge) {
			ge.Ref = c.branch
		}
		return err
	}
	return nil
}

// AddFiles stages every file yielded by files, typically from WalkFiles.
// The first error from the sequence or from staging stops the loop; files
// staged before it stay staged.
func (c *Commit) AddFiles(ctx context.Context, files iter.Seq2[FileInfo, error]) error {
	if err := c.ensureOpen("add files"); err != nil {
		return err
	}
	for f, err := range files {
		if err != nil {
			return newError("add files", c.branch, "", err)
		}
		if err := c.AddFile(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFiles unstages every path matched by any of patterns. Patterns that
// match nothing are not an error.
func (c *Commit) DeleteFiles(ctx context.Context, patterns ...Pattern) error {
	if err := c.ensureOpen("delete files"); err != nil {
		return err
	}
	for _, p := range patterns {
		if err := p.Validate(); err != nil {
			return newError("delete files", c.branch, p.String(), err)
		}
	}
	s, err := c.staged(ctx)
	if err != nil {
		return err
	}
	for _, p := range patterns {
		n := s.remove(p)
		c.repo.log.Debug("files deleted", "branch", c.branch, "pattern", p.String(), "count", n)
	}
	return nil
}

// Finish writes the staged tree and a commit parented on the base tip, then
// moves the branch to it. On any failure the Commit is aborted and the branch
// is left untouched.
func (c *Commit) Finish(ctx context.Context) (string, error) {
	if c.state != StateOpen {
		return "", newError("finish commit", c.branch, "", ErrAlreadyFinished)
	}

	h, err := c.publish(ctx)
	if err != nil {
		c.close(StateAborted)
		return "", newError("finish commit", c.branch, "", err)
	}

	c.hash = h
	c.close(StateFinished)
	c.repo.log.Debug("commit finished", "branch", c.branch, "commit", h, "parent", c.base)
	return h.String(), nil
}

func (c *Commit) publish(ctx context.Context) (plumbing.Hash, error) {
	s, err := c.staged(ctx)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	tree, err := s.writeTree(ctx)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	when := commitTime(c.timestamp, c.repo.options.Clock)
	author, committer := c.author, c.committer
	if c.timestamp != nil || author.When.IsZero() {
		author.When = when
	}
	if c.timestamp != nil || committer.When.IsZero() {
		committer.When = when
	}

	h, err := c.repo.writeCommit(ctx, tree, c.base, author, committer, c.message)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := c.repo.compareAndSwapRef(ctx, c.ref, c.base, h); err != nil {
		return plumbing.ZeroHash, err
	}
	return h, nil
}

// Abort discards the staged changes. The branch is never touched; blobs
// already written stay in the store as unreferenced objects.
func (c *Commit) Abort() error {
	if c.state != StateOpen {
		return newError("abort commit", c.branch, "", ErrAlreadyFinished)
	}
	c.close(StateAborted)
	c.repo.log.Debug("commit aborted", "branch", c.branch)
	return nil
}

// Close aborts the Commit if it is still open and does nothing otherwise,
// so it can be deferred right after NewCommit.
func (c *Commit) Close() error {
	if c.state == StateOpen {
		return c.Abort()
	}
	return nil
}

func (c *Commit) close(state CommitState) {
	c.state = state
	c.stage = nil
}

// WithCommit opens a Commit on branch and runs fn with it. If fn returns nil
// the Commit is finished, unless fn already finished or aborted it. If fn
// returns an error or panics, the Commit is aborted and the error or panic is
// passed on unchanged. The returned id is "" when nothing was published.
func (r *Repo) WithCommit(
	ctx context.Context,
	branch, message string,
	fn func(*Commit) error,
	opts ...CommitOption,
) (string, error) {
	c, err := r.NewCommit(ctx, branch, message, opts...)
	if err != nil {
		return "", err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = c.Close()
			panic(p)
		}
	}()

	if err := fn(c); err != nil {
		_ = c.Close()
		return "", err
	}

	if c.state != StateOpen {
		return c.Hash(), nil
	}
	return c.Finish(ctx)
}
