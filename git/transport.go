package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Transport moves one branch between a repository and a named remote.
type Transport interface {
	// Fetch copies branch from remote into refs/remotes/<remote>/<branch>.
	// It returns ErrRemoteRefNotFound when the remote or the branch is missing.
	Fetch(ctx context.Context, repo *git.Repository, remote, branch string) error

	// Push sets branch on remote to the local tip. Without force, an update
	// that is not a fast-forward fails with ErrPushRejected.
	Push(ctx context.Context, repo *git.Repository, remote, branch string, force bool) error
}

// remoteTransport speaks go-git's network protocols.
type remoteTransport struct {
	auth  AuthProvider
	depth int
}

func (t *remoteTransport) Fetch(ctx context.Context, repo *git.Repository, remote, branch string) error {
	rem, method, err := t.remote(repo, remote)
	if err != nil {
		return err
	}

	spec := config.RefSpec(fmt.Sprintf("+%s:%s",
		plumbing.NewBranchReferenceName(branch), plumbing.NewRemoteReferenceName(remote, branch)))
	err = rem.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{spec},
		Auth:       method,
		Depth:      t.depth,
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.NoMatchingRefSpecError{}):
		return WrapErrorf(ErrRemoteRefNotFound, "branch %q on %q", branch, remote)
	default:
		return mapTransportError(err)
	}
}

func (t *remoteTransport) Push(ctx context.Context, repo *git.Repository, remote, branch string, force bool) error {
	rem, method, err := t.remote(repo, remote)
	if err != nil {
		return err
	}

	ref := plumbing.NewBranchReferenceName(branch)
	spec := fmt.Sprintf("%s:%s", ref, ref)
	if force {
		spec = "+" + spec
	}
	err = rem.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(spec)},
		Auth:       method,
		Force:      force,
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case isRejection(err):
		return fmt.Errorf("%w: %w: %v", ErrPushRejected, ErrNotFastForward, err)
	default:
		return mapTransportError(err)
	}
}

func (t *remoteTransport) remote(repo *git.Repository, name string) (*git.Remote, transport.AuthMethod, error) {
	rem, err := repo.Remote(name)
	if errors.Is(err, git.ErrRemoteNotFound) {
		return nil, nil, WrapErrorf(ErrRemoteRefNotFound, "remote %q", name)
	}
	if err != nil {
		return nil, nil, WrapError(err, "failed to get remote configuration")
	}
	if t.auth == nil || len(rem.Config().URLs) == 0 {
		return rem, nil, nil
	}

	method, err := t.auth.Method(rem.Config().URLs[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}
	return rem, method, nil
}

func isRejection(err error) bool {
	if errors.Is(err, git.ErrNonFastForwardUpdate) || errors.Is(err, git.ErrForceNeeded) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "non-fast-forward") || strings.Contains(msg, "rejected")
}

func mapTransportError(err error) error {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return fmt.Errorf("%w: %w", ErrAuthRequired, err)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return fmt.Errorf("%w: %w", ErrRemoteRefNotFound, err)
	default:
		return err
	}
}
