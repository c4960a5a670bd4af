package git

import (
	"context"
	"path"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs"
	fsb "github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs/billy"
)

// testRepo is a helper struct that contains a test repository and its filesystem
type testRepo struct {
	repo *Repo
	fs   fs.Filesystem
	ctx  context.Context
}

// setupTestRepo creates a repository on an in-memory filesystem with
// user.name and user.email configured.
func setupTestRepo(t *testing.T, bare bool, mutate ...func(*Options)) *testRepo {
	t.Helper()
	tr := newTestRepo(t, bare, mutate...)
	tr.setUser(t, "username", "user@site.tld")
	return tr
}

// newTestRepo creates a repository with no identity configured. The user's
// global git config is hidden so results do not depend on the machine.
func newTestRepo(t *testing.T, bare bool, mutate ...func(*Options)) *testRepo {
	t.Helper()
	isolateGlobalConfig(t)

	ctx := context.Background()
	memFS := fsb.NewInMemoryFS()

	opts := Options{
		FS:      memFS,
		Bare:    bare,
		Workdir: ".",
	}
	for _, m := range mutate {
		m(&opts)
	}

	repo, err := Init(ctx, &opts)
	require.NoError(t, err, "failed to initialize test repository")
	require.NotNil(t, repo, "repository should not be nil")

	return &testRepo{repo: repo, fs: memFS, ctx: ctx}
}

// isolateGlobalConfig points the global git config lookup at an empty directory.
func isolateGlobalConfig(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
}

func (tr *testRepo) setUser(t *testing.T, name, email string) {
	t.Helper()
	cfg, err := tr.repo.repo.Config()
	require.NoError(t, err)
	cfg.User.Name = name
	cfg.User.Email = email
	require.NoError(t, tr.repo.repo.SetConfig(cfg))
}

// commitFiles publishes files on branch and returns the new tip.
func (tr *testRepo) commitFiles(t *testing.T, branch, message string, files map[string]string) string {
	t.Helper()
	sha, err := tr.repo.WithCommit(tr.ctx, branch, message, func(c *Commit) error {
		for p, content := range files {
			if err := c.AddFile(tr.ctx, NewFileInfo(p, []byte(content))); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err, "failed to commit files")
	return sha
}

// tip returns the branch tip, or "" when the branch is absent.
func (tr *testRepo) tip(t *testing.T, branch string) string {
	t.Helper()
	h, ok, err := tr.repo.resolveRef(tr.ctx, plumbing.NewBranchReferenceName(branch))
	require.NoError(t, err)
	if !ok {
		return ""
	}
	return h.String()
}

// treeFiles flattens the tree at the tip of branch into path -> content.
func (tr *testRepo) treeFiles(t *testing.T, branch string) map[string]string {
	t.Helper()
	entries := tr.treeEntries(t, branch)
	files := make(map[string]string, len(entries))
	for p, e := range entries {
		content, err := tr.repo.readBlob(tr.ctx, e.Hash)
		require.NoError(t, err)
		files[p] = string(content)
	}
	return files
}

// treeEntries flattens the tree at the tip of branch into path -> entry.
func (tr *testRepo) treeEntries(t *testing.T, branch string) map[string]object.TreeEntry {
	t.Helper()
	commit, err := tr.repo.repo.CommitObject(plumbing.NewHash(tr.tip(t, branch)))
	require.NoError(t, err)
	tree, err := commit.Tree()
	require.NoError(t, err)

	out := make(map[string]object.TreeEntry)
	var walk func(*object.Tree, string)
	walk = func(tree *object.Tree, prefix string) {
		for _, e := range tree.Entries {
			p := path.Join(prefix, e.Name)
			if e.Mode == filemode.Dir {
				sub, err := tree.Tree(e.Name)
				require.NoError(t, err)
				walk(sub, p)
				continue
			}
			out[p] = e
		}
	}
	walk(tree, "")
	return out
}

// memTransport serves remotes that are other in-memory repositories.
// Fast-forward checks happen on the pushing side, as go-git does.
type memTransport struct {
	remotes map[string]*Repo
}

func (m *memTransport) Fetch(ctx context.Context, repo *git.Repository, remote, branch string) error {
	src, ok := m.remotes[remote]
	if !ok {
		return ErrRemoteRefNotFound
	}
	ref, err := src.repo.Storer.Reference(plumbing.NewBranchReferenceName(branch))
	if err != nil {
		return ErrRemoteRefNotFound
	}
	if err := copyObject(src.repo, repo, ref.Hash()); err != nil {
		return err
	}
	return repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewRemoteReferenceName(remote, branch), ref.Hash()))
}

func (m *memTransport) Push(ctx context.Context, repo *git.Repository, remote, branch string, force bool) error {
	dst, ok := m.remotes[remote]
	if !ok {
		return ErrRemoteRefNotFound
	}
	name := plumbing.NewBranchReferenceName(branch)
	local, err := repo.Storer.Reference(name)
	if err != nil {
		return ErrBranchMissing
	}

	if current, err := dst.repo.Storer.Reference(name); err == nil && current.Hash() != local.Hash() && !force {
		theirs, err := object.GetCommit(repo.Storer, current.Hash())
		if err != nil {
			return ErrPushRejected
		}
		ours, err := object.GetCommit(repo.Storer, local.Hash())
		if err != nil {
			return err
		}
		if ff, err := theirs.IsAncestor(ours); err != nil || !ff {
			return ErrPushRejected
		}
	}

	if err := copyObject(repo, dst.repo, local.Hash()); err != nil {
		return err
	}
	return dst.repo.Storer.SetReference(plumbing.NewHashReference(name, local.Hash()))
}

// copyObject copies h and everything reachable from it.
func copyObject(from, to *git.Repository, h plumbing.Hash) error {
	if to.Storer.HasEncodedObject(h) == nil {
		return nil
	}
	obj, err := from.Storer.EncodedObject(plumbing.AnyObject, h)
	if err != nil {
		return err
	}
	if _, err := to.Storer.SetEncodedObject(obj); err != nil {
		return err
	}

	switch obj.Type() {
	case plumbing.CommitObject:
		c, err := object.DecodeCommit(from.Storer, obj)
		if err != nil {
			return err
		}
		if err := copyObject(from, to, c.TreeHash); err != nil {
			return err
		}
		for _, p := range c.ParentHashes {
			if err := copyObject(from, to, p); err != nil {
				return err
			}
		}
	case plumbing.TreeObject:
		tree, err := object.DecodeTree(from.Storer, obj)
		if err != nil {
			return err
		}
		for _, e := range tree.Entries {
			if e.Mode == filemode.Submodule {
				continue
			}
			if err := copyObject(from, to, e.Hash); err != nil {
				return err
			}
		}
	}
	return nil
}

// setupRemotePair returns a local repository whose "origin" remote is a bare
// in-memory repository served by memTransport.
func setupRemotePair(t *testing.T) (local, origin *testRepo) {
	t.Helper()
	origin = setupTestRepo(t, true)
	transport := &memTransport{remotes: map[string]*Repo{DefaultRemoteName: origin.repo}}
	local = setupTestRepo(t, false, func(o *Options) { o.Transport = transport })
	return local, origin
}
