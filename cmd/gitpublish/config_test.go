package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/git"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, defaultConfigFile)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadConfig(t *testing.T) {
	t.Run("default file", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, `
branch = "docs"
destinations = ["api"]
delete = ["api/*"]
push = true

[author]
name = "Publisher"
email = "publisher@example.com"

[auth]
token_env = "DOCS_TOKEN"
hosts = ["github.com"]

[log]
level = "debug"
max_backups = 5

[sync]
retries = 2
`)

		cfg, err := loadConfig("", dir)
		require.NoError(t, err)
		assert.Equal(t, "docs", cfg.Branch)
		assert.Equal(t, []string{"api"}, cfg.Destinations)
		assert.Equal(t, []string{"api/*"}, cfg.Delete)
		assert.True(t, cfg.Push)
		assert.Equal(t, "Publisher", cfg.Author.Name)
		assert.Equal(t, "DOCS_TOKEN", cfg.Auth.TokenEnv)
		assert.Equal(t, []string{"github.com"}, cfg.Auth.Hosts)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, 5, cfg.Log.MaxBackups)
		assert.Equal(t, 2, cfg.Sync.Retries)
	})

	t.Run("missing default file is fine", func(t *testing.T) {
		cfg, err := loadConfig("", t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, fileConfig{}, cfg)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"), ".")
		assert.Error(t, err)
	})

	t.Run("unknown keys", func(t *testing.T) {
		dir := t.TempDir()
		p := writeConfig(t, dir, "branch = \"x\"\nbrnach = \"y\"\n")
		_, err := loadConfig(p, dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "brnach")
	})

	t.Run("malformed", func(t *testing.T) {
		dir := t.TempDir()
		p := writeConfig(t, dir, "branch = \n")
		_, err := loadConfig(p, dir)
		assert.Error(t, err)
	})
}

func TestSourceDateEpoch(t *testing.T) {
	t.Setenv(sourceDateEpochEnv, "")
	ts, err := sourceDateEpoch()
	require.NoError(t, err)
	assert.Nil(t, ts)

	t.Setenv(sourceDateEpochEnv, " 1700000000 ")
	ts, err = sourceDateEpoch()
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.Equal(t, int64(1700000000), *ts)

	t.Setenv(sourceDateEpochEnv, "yesterday")
	_, err = sourceDateEpoch()
	assert.Error(t, err)
}

func TestResolveDeploy(t *testing.T) {
	t.Setenv(sourceDateEpochEnv, "")

	none := func(string) bool { return false }
	only := func(names ...string) func(string) bool {
		return func(n string) bool {
			for _, name := range names {
				if n == name {
					return true
				}
			}
			return false
		}
	}
	defaults := deployFlags{branch: defaultBranch, remote: git.DefaultRemoteName}

	t.Run("defaults", func(t *testing.T) {
		plan, err := resolveDeploy("site", defaults, fileConfig{}, none)
		require.NoError(t, err)
		assert.Equal(t, "gh-pages", plan.branch)
		assert.Equal(t, "Publish site", plan.message)
		assert.Equal(t, "origin", plan.remote)
		assert.Empty(t, plan.dests)
		assert.Empty(t, plan.deletes)
		assert.Nil(t, plan.timestamp)
	})

	t.Run("config fills unset flags", func(t *testing.T) {
		cfg := fileConfig{Branch: "docs", Remote: "upstream", Destinations: []string{"v1"}, Delete: []string{"*"}, Push: true}
		plan, err := resolveDeploy("site", defaults, cfg, none)
		require.NoError(t, err)
		assert.Equal(t, "docs", plan.branch)
		assert.Equal(t, "upstream", plan.remote)
		assert.Equal(t, []string{"v1"}, plan.dests)
		require.Len(t, plan.deletes, 1)
		assert.Equal(t, git.PatternAll, plan.deletes[0].Kind())
		assert.True(t, plan.push)
	})

	t.Run("flags win over config", func(t *testing.T) {
		f := defaults
		f.branch = "main"
		f.push = false
		f.dests = []string{"v2"}
		cfg := fileConfig{Branch: "docs", Push: true, Destinations: []string{"v1"}}
		plan, err := resolveDeploy("site", f, cfg, only("branch", "push", "dest"))
		require.NoError(t, err)
		assert.Equal(t, "main", plan.branch)
		assert.False(t, plan.push)
		assert.Equal(t, []string{"v2"}, plan.dests)
	})

	t.Run("timestamp flag beats SOURCE_DATE_EPOCH", func(t *testing.T) {
		t.Setenv(sourceDateEpochEnv, "100")
		f := defaults
		f.timestamp = 200
		plan, err := resolveDeploy("site", f, fileConfig{}, only("timestamp"))
		require.NoError(t, err)
		require.NotNil(t, plan.timestamp)
		assert.Equal(t, int64(200), *plan.timestamp)

		plan, err = resolveDeploy("site", defaults, fileConfig{}, none)
		require.NoError(t, err)
		require.NotNil(t, plan.timestamp)
		assert.Equal(t, int64(100), *plan.timestamp)
	})

	t.Run("delete patterns", func(t *testing.T) {
		f := defaults
		f.deletes = []string{"old.html", "assets/*.css"}
		plan, err := resolveDeploy("site", f, fileConfig{}, only("delete"))
		require.NoError(t, err)
		require.Len(t, plan.deletes, 2)
		assert.Equal(t, git.PatternExact, plan.deletes[0].Kind())
		assert.Equal(t, git.PatternGlob, plan.deletes[1].Kind())
	})

	t.Run("bad delete pattern", func(t *testing.T) {
		f := defaults
		f.deletes = []string{"[unclosed"}
		_, err := resolveDeploy("site", f, fileConfig{}, only("delete"))
		assert.ErrorIs(t, err, git.ErrInvalidPattern)
	})
}

func TestAuthProvider(t *testing.T) {
	t.Setenv(defaultTokenEnv, "")
	assert.Nil(t, authProvider(authConfig{}))

	t.Setenv("DOCS_TOKEN", "secret")
	p := authProvider(authConfig{TokenEnv: "DOCS_TOKEN"})
	require.NotNil(t, p)
	method, err := p.Method("https://github.com/org/site.git")
	require.NoError(t, err)
	assert.NotNil(t, method)

	chained := authProvider(authConfig{TokenEnv: "DOCS_TOKEN", SSHAgent: true})
	require.NotNil(t, chained)
	method, err = chained.Method("https://github.com/org/site.git")
	require.NoError(t, err)
	assert.NotNil(t, method)
}
