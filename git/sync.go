package git

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-git/v5/plumbing"

	pubErrors "github.com/input-output-hk/catalyst-forge-libs/gitpublish/errors"
)

// pullInitialInterval is the first PullBranch backoff delay.
const pullInitialInterval = 100 * time.Millisecond

// UpdateBranch fast-forwards the local branch to the remote tracking ref
// refs/remotes/<remote>/<branch> as last fetched.
//
// A missing tracking ref is ignored unless strict is set, in which case it is
// ErrRemoteRefNotFound. A missing local branch is created at the remote tip.
// When the local branch is ahead of the remote or has diverged from it the
// branch is left as it is.
func (r *Repo) UpdateBranch(ctx context.Context, remote, branch string, strict bool) error {
	if remote == "" {
		remote = DefaultRemoteName
	}
	ref, err := branchRef(branch)
	if err != nil {
		return newError("update branch", branch, "", err)
	}
	tracking := plumbing.NewRemoteReferenceName(remote, branch)

	remoteTip, ok, err := r.resolveRef(ctx, tracking)
	if err != nil {
		return newError("update branch", tracking.Short(), "", err)
	}
	if !ok {
		if strict {
			return newError("update branch", tracking.Short(), "", ErrRemoteRefNotFound)
		}
		r.log.Debug("no remote ref, branch left unchanged", "remote", remote, "branch", branch)
		return nil
	}

	localTip, ok, err := r.resolveRef(ctx, ref)
	if err != nil {
		return newError("update branch", branch, "", err)
	}
	switch {
	case !ok:
		localTip = plumbing.ZeroHash
	case localTip == remoteTip:
		return nil
	default:
		ff, err := r.isAncestor(ctx, localTip, remoteTip)
		if err != nil {
			return newError("update branch", branch, "", err)
		}
		if !ff {
			r.log.Debug("branch ahead of or diverged from remote, left unchanged",
				"remote", remote, "branch", branch, "local", localTip, "remote_tip", remoteTip)
			return nil
		}
	}

	if err := r.compareAndSwapRef(ctx, ref, localTip, remoteTip); err != nil {
		return newError("update branch", branch, "", err)
	}
	r.log.Debug("branch updated from remote", "remote", remote, "branch", branch, "from", localTip, "to", remoteTip)
	return nil
}

// isAncestor reports whether commit a is reachable from commit b.
func (r *Repo) isAncestor(ctx context.Context, a, b plumbing.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ca, err := r.repo.CommitObject(a)
	if err != nil {
		return false, err
	}
	cb, err := r.repo.CommitObject(b)
	if err != nil {
		return false, err
	}
	return ca.IsAncestor(cb)
}

// FetchBranch fetches branch from remote into its tracking ref.
func (r *Repo) FetchBranch(ctx context.Context, remote, branch string) error {
	if remote == "" {
		remote = DefaultRemoteName
	}
	if _, err := branchRef(branch); err != nil {
		return newError("fetch branch", branch, "", err)
	}
	if err := r.options.Transport.Fetch(ctx, r.repo, remote, branch); err != nil {
		return newError("fetch branch", remote+"/"+branch, "", err)
	}
	r.log.Debug("branch fetched", "remote", remote, "branch", branch)
	return nil
}

// PullBranch fetches branch and fast-forwards the local branch to it. A
// branch missing on the remote is only an error when strict is set. When
// a concurrent local publish wins the ref race in between, the whole
// fetch-and-update is retried with exponential backoff, at most
// Options.SyncRetries times.
func (r *Repo) PullBranch(ctx context.Context, remote, branch string, strict bool) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = pullInitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(r.options.SyncRetries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := r.FetchBranch(ctx, remote, branch)
		if !strict && errors.Is(err, ErrRemoteRefNotFound) {
			r.log.Debug("nothing to pull", "remote", remote, "branch", branch, "error", err)
			err = nil
		}
		if err == nil {
			err = r.UpdateBranch(ctx, remote, branch, strict)
		}
		if err == nil {
			return nil
		}
		if !pubErrors.IsRetryable(pubErrors.CodeOf(err)) {
			return backoff.Permanent(err)
		}
		r.log.Debug("pull will be retried", "branch", branch, "attempt", attempt, "error", err)
		return err
	}, policy)
}

// PushBranch pushes the local branch to remote. Without force the remote
// only accepts a fast-forward and anything else fails with ErrPushRejected;
// with force the remote branch is overwritten.
func (r *Repo) PushBranch(ctx context.Context, remote, branch string, force bool) error {
	if remote == "" {
		remote = DefaultRemoteName
	}
	ref, err := branchRef(branch)
	if err != nil {
		return newError("push branch", branch, "", err)
	}
	tip, ok, err := r.resolveRef(ctx, ref)
	if err != nil {
		return newError("push branch", branch, "", err)
	}
	if !ok {
		return newError("push branch", branch, "", ErrBranchMissing)
	}

	if err := r.options.Transport.Push(ctx, r.repo, remote, branch, force); err != nil {
		return newError("push branch", branch, "", err)
	}
	r.log.Debug("branch pushed", "remote", remote, "branch", branch, "commit", tip, "force", force)
	return nil
}
