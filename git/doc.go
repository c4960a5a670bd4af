// Package git publishes commits to branches straight from the object store.
//
// Nothing here reads or writes a working tree. A publish stages files
// against a branch's current tree, writes one new commit on top of it and
// moves the branch with a compare-and-swap, so the caller's checkout is never
// touched and concurrent publishers cannot silently overwrite each other.
// Repositories live behind the project's filesystem abstraction and may be
// on disk or in memory.
//
// # Opening a Repository
//
//	import (
//	    "context"
//	    billyfs "github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs/billy"
//	    "github.com/input-output-hk/catalyst-forge-libs/gitpublish/git"
//	)
//
//	repo, err := git.Open(ctx, &git.Options{
//	    FS:     billyfs.NewOSFS("/path/to/repo"),
//	    Logger: slog.Default(),
//	})
//
// # Publishing a Directory
//
// WithCommit opens a transaction, runs the callback and finishes it. If the
// callback fails or panics the transaction is aborted and the branch stays
// where it was:
//
//	src := billyfs.NewOSFS("site")
//	sha, err := repo.WithCommit(ctx, "gh-pages", "Deploy docs", func(c *git.Commit) error {
//	    if err := c.DeleteFiles(ctx, git.AllFiles()); err != nil {
//	        return err
//	    }
//	    return c.AddFiles(ctx, git.WalkFiles(src, ".", "latest"))
//	}, git.WithTimestamp(1700000000))
//
// The explicit form needs a deferred Close so that early returns abort:
//
//	c, err := repo.NewCommit(ctx, "gh-pages", "Deploy docs")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	if err := c.AddFile(ctx, git.NewFileInfo("index.html", page)); err != nil {
//	    return err
//	}
//	sha, err := c.Finish(ctx)
//
// # Races
//
// Finish fails with ErrConcurrentUpdate when the branch moved after the
// transaction was opened. The staged content may depend on the old tip, so
// nothing is retried automatically; open a new transaction and stage again.
//
// # Reading Branches
//
//	sha, err := repo.LatestCommit(ctx, "gh-pages")
//	mode, err := repo.FileMode(ctx, "gh-pages", "bin/run.sh")
//	page, err := repo.ReadFileText(ctx, "gh-pages", "index.html")
//
// # Remotes
//
//	// Bring the local branch up to date with origin before publishing.
//	err = repo.PullBranch(ctx, "origin", "gh-pages", false)
//
//	// Publish; fails with ErrPushRejected if origin moved meanwhile.
//	err = repo.PushBranch(ctx, "origin", "gh-pages", false)
//
// # Error Handling
//
// Errors wrap package sentinels and can be tested with errors.Is:
//
//	if errors.Is(err, git.ErrConcurrentUpdate) {
//	    // reopen and stage again
//	}
//
// Errors that name a branch or path are *GitError values, whose Code method
// classifies them with the shared error code catalogue.
package git
