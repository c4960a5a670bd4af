package git

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// publishHistory creates three commits on gh-pages one hour apart.
func publishHistory(t *testing.T, tr *testRepo) []string {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Unix()

	steps := []struct {
		message string
		fn      func(c *Commit) error
	}{
		{"Initial publish\n\nfrom CI", func(c *Commit) error {
			if err := c.AddFile(tr.ctx, NewFileInfo("index.html", []byte("v1"))); err != nil {
				return err
			}
			return c.AddFile(tr.ctx, NewFileInfo("docs/a.md", []byte("a")))
		}},
		{"Update index", func(c *Commit) error {
			return c.AddFile(tr.ctx, NewFileInfo("index.html", []byte("v2")))
		}},
		{"Drop docs", func(c *Commit) error {
			return c.DeleteFiles(tr.ctx, ExactPath("docs"))
		}},
	}

	var shas []string
	for i, s := range steps {
		sha, err := tr.repo.WithCommit(tr.ctx, "gh-pages", s.message, s.fn, WithTimestamp(base+int64(i)*3600))
		require.NoError(t, err)
		shas = append(shas, sha)
	}
	return shas
}

func TestHistory(t *testing.T) {
	tr := setupTestRepo(t, false)
	shas := publishHistory(t, tr)

	entries, err := tr.repo.History(tr.ctx, "gh-pages", HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, shas[2], entries[0].Hash)
	assert.Equal(t, "Drop docs", entries[0].Subject())
	assert.Equal(t, []Change{{Path: "docs/a.md", Action: ChangeDeleted}}, entries[0].Changes)

	assert.Equal(t, []Change{{Path: "index.html", Action: ChangeModified}}, entries[1].Changes)

	assert.Equal(t, shas[0], entries[2].Hash)
	assert.Equal(t, "Initial publish", entries[2].Subject())
	assert.Equal(t, []Change{
		{Path: "docs/a.md", Action: ChangeAdded},
		{Path: "index.html", Action: ChangeAdded},
	}, entries[2].Changes)
	assert.Equal(t, "username", entries[2].Author.Name)
}

func TestHistory_Filters(t *testing.T) {
	tr := setupTestRepo(t, false)
	shas := publishHistory(t, tr)

	t.Run("max count", func(t *testing.T) {
		entries, err := tr.repo.History(tr.ctx, "gh-pages", HistoryFilter{MaxCount: 2})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, shas[1], entries[1].Hash)
	})

	t.Run("since", func(t *testing.T) {
		since := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
		entries, err := tr.repo.History(tr.ctx, "gh-pages", HistoryFilter{Since: &since})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, shas[1], entries[1].Hash)
	})

	t.Run("paths", func(t *testing.T) {
		entries, err := tr.repo.History(tr.ctx, "gh-pages", HistoryFilter{Paths: []Pattern{ExactPath("docs")}})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, shas[2], entries[0].Hash)
		assert.Equal(t, shas[0], entries[1].Hash)
		assert.Equal(t, []Change{{Path: "docs/a.md", Action: ChangeAdded}}, entries[1].Changes)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := tr.repo.History(tr.ctx, "gh-pages", HistoryFilter{Paths: []Pattern{Glob("[")}})
		assert.ErrorIs(t, err, ErrInvalidPattern)
	})
}

func TestHistory_MissingBranch(t *testing.T) {
	tr := setupTestRepo(t, false)
	_, err := tr.repo.History(tr.ctx, "gh-pages", HistoryFilter{})
	assert.ErrorIs(t, err, ErrBranchMissing)
}

func TestChangeAction_String(t *testing.T) {
	assert.Equal(t, "A", ChangeAdded.String())
	assert.Equal(t, "M", ChangeModified.String())
	assert.Equal(t, "D", ChangeDeleted.String())
	assert.Equal(t, "?", ChangeAction(9).String())
}
