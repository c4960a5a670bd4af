package git

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pubErrors "github.com/input-output-hk/catalyst-forge-libs/gitpublish/errors"
	fsb "github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs/billy"
)

func TestCommit_AddFileToNewBranch(t *testing.T) {
	tr := setupTestRepo(t, false)

	c, err := tr.repo.NewCommit(tr.ctx, "master", "add file")
	require.NoError(t, err)
	assert.Equal(t, "", c.Base())
	require.NoError(t, c.AddFile(tr.ctx, NewFileInfo("file.txt", []byte("hello"))))

	sha, err := c.Finish(tr.ctx)
	require.NoError(t, err)
	assert.Equal(t, StateFinished, c.State())
	assert.Equal(t, sha, c.Hash())

	latest, err := tr.repo.LatestCommit(tr.ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, sha, latest)

	entries := tr.treeEntries(t, "master")
	require.Len(t, entries, 1)
	assert.Equal(t, filemode.Regular, entries["file.txt"].Mode)
	assert.Equal(t, map[string]string{"file.txt": "hello"}, tr.treeFiles(t, "master"))

	commit, err := tr.repo.repo.CommitObject(plumbing.NewHash(sha))
	require.NoError(t, err)
	assert.Empty(t, commit.ParentHashes)
	assert.Equal(t, "add file", commit.Message)
	assert.Equal(t, "username", commit.Author.Name)
	assert.Equal(t, "user@site.tld", commit.Committer.Email)
}

func TestCommit_InheritsAndParentsOnTip(t *testing.T) {
	tr := setupTestRepo(t, false)
	first := tr.commitFiles(t, "master", "first", map[string]string{"file.txt": "one"})
	second := tr.commitFiles(t, "master", "second", map[string]string{"file2.txt": "two"})

	assert.Equal(t, map[string]string{"file.txt": "one", "file2.txt": "two"}, tr.treeFiles(t, "master"))

	commit, err := tr.repo.repo.CommitObject(plumbing.NewHash(second))
	require.NoError(t, err)
	require.Len(t, commit.ParentHashes, 1)
	assert.Equal(t, first, commit.ParentHashes[0].String())
}

func TestCommit_StagedManifest(t *testing.T) {
	tr := setupTestRepo(t, false)
	tr.commitFiles(t, "master", "seed", map[string]string{
		"keep.txt":       "keep",
		"old.txt":        "old",
		"docs/a.html":    "a",
		"docs/img/b.png": "b",
		"overwrite.txt":  "before",
	})

	_, err := tr.repo.WithCommit(tr.ctx, "master", "update", func(c *Commit) error {
		steps := []error{
			c.DeleteFiles(tr.ctx, ExactPath("old.txt")),
			c.AddFile(tr.ctx, NewFileInfo("overwrite.txt", []byte("first"))),
			c.AddFile(tr.ctx, NewFileInfo("overwrite.txt", []byte("after"))),
			c.DeleteFiles(tr.ctx, Glob("docs/*")),
			c.AddFile(tr.ctx, NewFileInfo("docs/new.html", []byte("new"))),
			c.AddFile(tr.ctx, NewFileInfo("gone.txt", []byte("x"))),
			c.DeleteFiles(tr.ctx, ExactPath("gone.txt"), ExactPath("never-existed.txt")),
		}
		return errors.Join(steps...)
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"keep.txt":      "keep",
		"overwrite.txt": "after",
		"docs/new.html": "new",
	}, tr.treeFiles(t, "master"))
}

func TestCommit_DeleteAllFiles(t *testing.T) {
	tr := setupTestRepo(t, false)
	tr.commitFiles(t, "master", "seed", map[string]string{"file.txt": "1", "dir/file2.txt": "2"})

	_, err := tr.repo.WithCommit(tr.ctx, "master", "delete all files", func(c *Commit) error {
		pat, err := ParsePattern("*")
		if err != nil {
			return err
		}
		return c.DeleteFiles(tr.ctx, pat)
	})
	require.NoError(t, err)
	assert.Empty(t, tr.treeEntries(t, "master"))
}

func TestCommit_ModesAndLayout(t *testing.T) {
	tr := setupTestRepo(t, false)

	_, err := tr.repo.WithCommit(tr.ctx, "master", "modes", func(c *Commit) error {
		return errors.Join(
			c.AddFile(tr.ctx, FileInfo{Path: "bin/run.sh", Content: []byte("#!/bin/sh\n"), Mode: filemode.Executable}),
			c.AddFile(tr.ctx, FileInfo{Path: "latest", Content: []byte("v1.0"), Mode: filemode.Symlink}),
			c.AddFile(tr.ctx, FileInfo{Path: "a", Content: []byte("file a")}),
			// a becomes a directory; the file is dropped
			c.AddFile(tr.ctx, NewFileInfo("a/b.txt", []byte("b"))),
		)
	})
	require.NoError(t, err)

	entries := tr.treeEntries(t, "master")
	assert.Equal(t, filemode.Executable, entries["bin/run.sh"].Mode)
	assert.Equal(t, filemode.Symlink, entries["latest"].Mode)
	assert.Equal(t, filemode.Regular, entries["a/b.txt"].Mode)
	assert.NotContains(t, entries, "a")

	_, err = tr.repo.WithCommit(tr.ctx, "master", "dir to file", func(c *Commit) error {
		return c.AddFile(tr.ctx, NewFileInfo("a", []byte("file again")))
	})
	require.NoError(t, err)
	files := tr.treeFiles(t, "master")
	assert.Equal(t, "file again", files["a"])
	assert.NotContains(t, files, "a/b.txt")
}

func TestCommit_RejectsBadInput(t *testing.T) {
	tr := setupTestRepo(t, false)
	c, err := tr.repo.NewCommit(tr.ctx, "master", "bad")
	require.NoError(t, err)
	defer c.Close()

	for _, p := range []string{"", "/abs.txt", "../up.txt", "a/../../b", ".git/config", "."} {
		err := c.AddFile(tr.ctx, NewFileInfo(p, []byte("x")))
		assert.ErrorIs(t, err, ErrInvalidPath, "path %q", p)
	}

	err = c.AddFile(tr.ctx, FileInfo{Path: "dir", Mode: filemode.Dir})
	assert.ErrorIs(t, err, ErrInvalidPath)

	err = c.DeleteFiles(tr.ctx, Glob("[unclosed"))
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = tr.repo.NewCommit(tr.ctx, "bad..name", "x")
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestCommit_FinishTwiceAndAbortAfterFinish(t *testing.T) {
	tr := setupTestRepo(t, false)

	c, err := tr.repo.NewCommit(tr.ctx, "master", "add file")
	require.NoError(t, err)
	require.NoError(t, c.AddFile(tr.ctx, NewFileInfo("file.txt", []byte("this is some text"))))
	sha, err := c.Finish(tr.ctx)
	require.NoError(t, err)

	_, err = c.Finish(tr.ctx)
	assert.ErrorIs(t, err, ErrAlreadyFinished)
	assert.ErrorIs(t, c.Abort(), ErrAlreadyFinished)
	assert.ErrorIs(t, c.AddFile(tr.ctx, NewFileInfo("more.txt", nil)), ErrTransactionClosed)
	assert.ErrorIs(t, c.DeleteFiles(tr.ctx, AllFiles()), ErrTransactionClosed)
	assert.NoError(t, c.Close())

	assert.Equal(t, sha, tr.tip(t, "master"))
	assert.Equal(t, map[string]string{"file.txt": "this is some text"}, tr.treeFiles(t, "master"))
}

func TestCommit_Abort(t *testing.T) {
	tr := setupTestRepo(t, false)
	before := tr.commitFiles(t, "master", "seed", map[string]string{"file.txt": "this is some text"})

	c, err := tr.repo.NewCommit(tr.ctx, "master", "add file")
	require.NoError(t, err)
	require.NoError(t, c.AddFile(tr.ctx, NewFileInfo("file2.txt", []byte("this is some text"))))
	require.NoError(t, c.Abort())
	assert.Equal(t, StateAborted, c.State())
	assert.Equal(t, "", c.Hash())

	_, err = c.Finish(tr.ctx)
	assert.ErrorIs(t, err, ErrAlreadyFinished)
	assert.ErrorIs(t, c.Abort(), ErrAlreadyFinished)

	assert.Equal(t, before, tr.tip(t, "master"))
	assert.Equal(t, map[string]string{"file.txt": "this is some text"}, tr.treeFiles(t, "master"))
}

func TestCommit_CloseAbortsOpenCommit(t *testing.T) {
	tr := setupTestRepo(t, false)

	func() {
		c, err := tr.repo.NewCommit(tr.ctx, "master", "never finished")
		require.NoError(t, err)
		defer c.Close()
		require.NoError(t, c.AddFile(tr.ctx, NewFileInfo("file.txt", []byte("x"))))
	}()

	assert.Equal(t, "", tr.tip(t, "master"))
}

func TestWithCommit_AlreadyFinishedInside(t *testing.T) {
	tr := setupTestRepo(t, false)

	var inner string
	sha, err := tr.repo.WithCommit(tr.ctx, "master", "add file", func(c *Commit) error {
		if err := c.AddFile(tr.ctx, NewFileInfo("file.txt", []byte("this is some text"))); err != nil {
			return err
		}
		var err error
		inner, err = c.Finish(tr.ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, inner, sha)
	assert.Equal(t, sha, tr.tip(t, "master"))
}

func TestWithCommit_AbortedInside(t *testing.T) {
	tr := setupTestRepo(t, false)

	sha, err := tr.repo.WithCommit(tr.ctx, "master", "add file", func(c *Commit) error {
		return c.Abort()
	})
	require.NoError(t, err)
	assert.Equal(t, "", sha)
	assert.Equal(t, "", tr.tip(t, "master"))
}

func TestWithCommit_ErrorAborts(t *testing.T) {
	tr := setupTestRepo(t, false)
	before := tr.commitFiles(t, "master", "seed", map[string]string{"file.txt": "text"})

	bad := errors.New("bad")
	var captured *Commit
	_, err := tr.repo.WithCommit(tr.ctx, "master", "add file", func(c *Commit) error {
		captured = c
		if err := c.AddFile(tr.ctx, NewFileInfo("file2.txt", []byte("text"))); err != nil {
			return err
		}
		return bad
	})
	assert.Same(t, bad, err)
	assert.Equal(t, StateAborted, captured.State())
	assert.Equal(t, before, tr.tip(t, "master"))
}

func TestWithCommit_PanicAborts(t *testing.T) {
	tr := setupTestRepo(t, false)
	before := tr.commitFiles(t, "master", "seed", map[string]string{"file.txt": "text"})

	var captured *Commit
	assert.PanicsWithValue(t, "bad", func() {
		_, _ = tr.repo.WithCommit(tr.ctx, "master", "add file", func(c *Commit) error {
			captured = c
			_ = c.AddFile(tr.ctx, NewFileInfo("file2.txt", []byte("text")))
			panic("bad")
		})
	})
	assert.Equal(t, StateAborted, captured.State())
	assert.Equal(t, before, tr.tip(t, "master"))
	assert.Equal(t, map[string]string{"file.txt": "text"}, tr.treeFiles(t, "master"))
}

func TestCommit_ConcurrentUpdate(t *testing.T) {
	tr := setupTestRepo(t, false)
	start := tr.commitFiles(t, "master", "seed", map[string]string{"base.txt": "base"})

	a, err := tr.repo.NewCommit(tr.ctx, "master", "from a")
	require.NoError(t, err)
	b, err := tr.repo.NewCommit(tr.ctx, "master", "from b")
	require.NoError(t, err)
	assert.Equal(t, start, a.Base())
	assert.Equal(t, start, b.Base())

	require.NoError(t, a.AddFile(tr.ctx, NewFileInfo("a.txt", []byte("a"))))
	require.NoError(t, b.AddFile(tr.ctx, NewFileInfo("b.txt", []byte("b"))))

	aSha, err := a.Finish(tr.ctx)
	require.NoError(t, err)

	_, err = b.Finish(tr.ctx)
	require.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Equal(t, StateAborted, b.State())
	assert.Equal(t, pubErrors.CodeConflict, pubErrors.CodeOf(err))
	assert.Equal(t, aSha, tr.tip(t, "master"))

	// retry against the new tip
	_, err = tr.repo.WithCommit(tr.ctx, "master", "from b", func(c *Commit) error {
		return c.AddFile(tr.ctx, NewFileInfo("b.txt", []byte("b")))
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"base.txt": "base", "a.txt": "a", "b.txt": "b"}, tr.treeFiles(t, "master"))
}

func TestCommit_ConcurrentCreate(t *testing.T) {
	tr := setupTestRepo(t, false)

	a, err := tr.repo.NewCommit(tr.ctx, "gh-pages", "a")
	require.NoError(t, err)
	b, err := tr.repo.NewCommit(tr.ctx, "gh-pages", "b")
	require.NoError(t, err)

	_, err = a.Finish(tr.ctx)
	require.NoError(t, err)
	_, err = b.Finish(tr.ctx)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
}

func TestCommit_CreateRaceAcrossRepos(t *testing.T) {
	isolateGlobalConfig(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := Init(ctx, &Options{FS: fsb.NewOSFS(dir), Bare: true})
	require.NoError(t, err)

	// Two handles on one repository share nothing but the files on disk.
	var repos [2]*Repo
	for i := range repos {
		repos[i], err = Open(ctx, &Options{FS: fsb.NewOSFS(dir), Bare: true})
		require.NoError(t, err)
	}
	who := Signature{Name: "racer", Email: "racer@example.com"}

	const branches = 100
	for n := 0; n < branches; n++ {
		branch := fmt.Sprintf("b%d", n)

		var commits [2]*Commit
		for i, r := range repos {
			c, err := r.NewCommit(ctx, branch, fmt.Sprintf("from %d", i), WithAuthor(who))
			require.NoError(t, err)
			require.NoError(t, c.AddFile(ctx, NewFileInfo(fmt.Sprintf("f%d.txt", i), []byte{byte(i)})))
			commits[i] = c
		}

		var (
			wg    sync.WaitGroup
			start = make(chan struct{})
			shas  [2]string
			errs  [2]error
		)
		for i, c := range commits {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				shas[i], errs[i] = c.Finish(ctx)
			}()
		}
		close(start)
		wg.Wait()

		var winner string
		wins := 0
		for i := range commits {
			if errs[i] == nil {
				wins++
				winner = shas[i]
				continue
			}
			assert.ErrorIs(t, errs[i], ErrConcurrentUpdate, "branch %s", branch)
		}
		require.Equal(t, 1, wins, "branch %s: exactly one create must win", branch)

		tip, err := repos[0].LatestCommit(ctx, branch)
		require.NoError(t, err)
		assert.Equal(t, winner, tip, "branch %s", branch)
	}
}

func TestCommit_Timestamp(t *testing.T) {
	tr := setupTestRepo(t, false)

	build := func() string {
		sha, err := tr.repo.WithCommit(tr.ctx, "reproducible", "docs", func(c *Commit) error {
			return c.AddFile(tr.ctx, NewFileInfo("index.html", []byte("<html/>")))
		}, WithTimestamp(12345))
		require.NoError(t, err)
		return sha
	}

	sha := build()
	commit, err := tr.repo.repo.CommitObject(plumbing.NewHash(sha))
	require.NoError(t, err)
	assert.Equal(t, int64(12345), commit.Author.When.Unix())
	assert.Equal(t, int64(12345), commit.Committer.When.Unix())

	// same content, time and parentless history produce the same commit in a fresh repo
	other := setupTestRepo(t, false)
	again, err := other.repo.WithCommit(other.ctx, "reproducible", "docs", func(c *Commit) error {
		return c.AddFile(other.ctx, NewFileInfo("index.html", []byte("<html/>")))
	}, WithTimestamp(12345))
	require.NoError(t, err)
	assert.Equal(t, sha, again)
}

func TestCommit_ClockAndSignatures(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tr := setupTestRepo(t, false, func(o *Options) {
		o.Clock = func() time.Time { return fixed }
	})

	author := Signature{Name: "Author", Email: "author@example.com"}
	committer := Signature{Name: "Bot", Email: "bot@example.com"}
	sha, err := tr.repo.WithCommit(tr.ctx, "master", "signed", func(c *Commit) error {
		return c.AddFile(tr.ctx, NewFileInfo("f", nil))
	}, WithAuthor(author), WithCommitter(committer))
	require.NoError(t, err)

	commit, err := tr.repo.repo.CommitObject(plumbing.NewHash(sha))
	require.NoError(t, err)
	assert.Equal(t, "Author", commit.Author.Name)
	assert.Equal(t, "bot@example.com", commit.Committer.Email)
	assert.Equal(t, fixed.Unix(), commit.Author.When.Unix())
}

func TestNewCommit_AuthorFallback(t *testing.T) {
	t.Run("missing identity", func(t *testing.T) {
		tr := newTestRepo(t, false)

		_, err := tr.repo.NewCommit(tr.ctx, "master", "x")
		assert.ErrorIs(t, err, ErrConfigMissing)
	})

	t.Run("default author fills gaps", func(t *testing.T) {
		tr := newTestRepo(t, false, func(o *Options) {
			o.DefaultAuthor = &Signature{Name: "Publisher", Email: "publisher@example.com"}
		})
		tr.setUser(t, "Configured", "")

		sha, err := tr.repo.WithCommit(tr.ctx, "master", "x", func(c *Commit) error {
			return c.AddFile(tr.ctx, NewFileInfo("f", nil))
		})
		require.NoError(t, err)
		commit, err := tr.repo.repo.CommitObject(plumbing.NewHash(sha))
		require.NoError(t, err)
		assert.Equal(t, "Configured", commit.Author.Name)
		assert.Equal(t, "publisher@example.com", commit.Author.Email)
	})
}

func TestCommit_AddFilesFromWalk(t *testing.T) {
	tr := setupTestRepo(t, false)
	src := tr.fs
	require.NoError(t, src.WriteFile("site/index.html", []byte("index"), 0o644))
	require.NoError(t, src.WriteFile("site/css/main.css", []byte("css"), 0o644))

	_, err := tr.repo.WithCommit(tr.ctx, "gh-pages", "deploy", func(c *Commit) error {
		return c.AddFiles(tr.ctx, WalkFiles(src, "site", "1.0", "latest"))
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"1.0/index.html":      "index",
		"1.0/css/main.css":    "css",
		"latest/index.html":   "index",
		"latest/css/main.css": "css",
	}, tr.treeFiles(t, "gh-pages"))
}

func TestCommit_AddFilesStopsOnWalkError(t *testing.T) {
	tr := setupTestRepo(t, false)

	_, err := tr.repo.WithCommit(tr.ctx, "gh-pages", "deploy", func(c *Commit) error {
		return c.AddFiles(tr.ctx, WalkFiles(tr.fs, "missing"))
	})
	require.Error(t, err)
	assert.Equal(t, "", tr.tip(t, "gh-pages"))
}

func TestCommitState_String(t *testing.T) {
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "finished", StateFinished.String())
	assert.Equal(t, "aborted", StateAborted.String())
	assert.Equal(t, "unknown", CommitState(9).String())
}
