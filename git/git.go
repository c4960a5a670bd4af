// Package git publishes commits into a git object store without touching a
// working tree. It operates exclusively through the project's filesystem
// abstraction, so repositories may live on disk or in memory.
package git

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs"
	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/git/internal/fsbridge"
)

const (
	// DefaultStorerCacheSize is the default size for the LRU object cache.
	DefaultStorerCacheSize = 1000

	// DefaultWorkdir is the default repository directory within the filesystem.
	DefaultWorkdir = "."

	// DefaultRemoteName is the default remote name used for operations.
	DefaultRemoteName = "origin"

	// DefaultSyncRetries bounds PullBranch retries after a lost ref race.
	DefaultSyncRetries = 3
)

// Options configures repository discovery/creation and publishing behaviour.
type Options struct {
	// FS is the REQUIRED native filesystem root (OS or in-memory).
	// All repository state lives within this filesystem.
	FS fs.Filesystem

	// Workdir is the path within FS for the repository root.
	// Defaults to "." (current directory in FS).
	Workdir string

	// Bare indicates a bare repository (objects and refs at Workdir, no .git).
	Bare bool

	// StorerCacheSize sets the LRU objects cache entries.
	// Defaults to DefaultStorerCacheSize.
	StorerCacheSize int

	// Auth resolves per-URL credentials for the default transport.
	// If nil, no authentication will be available.
	Auth AuthProvider

	// Transport performs fetch and push. Defaults to go-git's remote
	// protocols using Auth.
	Transport Transport

	// Logger receives debug records for staging, ref updates and sync
	// decisions. Defaults to a logger that discards everything.
	Logger *slog.Logger

	// SyncRetries bounds how often PullBranch retries after losing a
	// local ref race. Defaults to DefaultSyncRetries.
	SyncRetries int

	// DefaultAuthor is used when user.name/user.email are not configured.
	DefaultAuthor *Signature

	// ShallowDepth sets the depth for clone and fetch operations.
	// If 0, full history is transferred.
	ShallowDepth int

	// Clock supplies the commit time when no timestamp is given.
	// Defaults to time.Now.
	Clock func() time.Time
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	if o.FS == nil {
		return WrapError(ErrInvalidOptions, "FS is required")
	}

	if o.StorerCacheSize < 0 {
		return WrapError(ErrInvalidOptions, "StorerCacheSize cannot be negative")
	}

	if o.ShallowDepth < 0 {
		return WrapError(ErrInvalidOptions, "ShallowDepth cannot be negative")
	}

	if o.SyncRetries < 0 {
		return WrapError(ErrInvalidOptions, "SyncRetries cannot be negative")
	}

	if o.DefaultAuthor != nil && (o.DefaultAuthor.Name == "" || o.DefaultAuthor.Email == "") {
		return WrapError(ErrConfigMissing, "DefaultAuthor needs a name and an email")
	}

	return nil
}

// applyDefaults sets default values for any unset fields in Options.
func (o *Options) applyDefaults() {
	if o.Workdir == "" {
		o.Workdir = DefaultWorkdir
	}

	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}

	if o.SyncRetries == 0 {
		o.SyncRetries = DefaultSyncRetries
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if o.Clock == nil {
		o.Clock = time.Now
	}

	if o.Transport == nil {
		o.Transport = &remoteTransport{auth: o.Auth, depth: o.ShallowDepth}
	}
}

// Init creates a new git repository at the configured location.
func Init(ctx context.Context, opts *Options) (*Repo, error) {
	layout, err := prepare(ctx, opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Init(layout.Storage, layout.Worktree)
	if err != nil {
		return nil, WrapError(err, "failed to initialize repository")
	}

	return newRepo(repo, layout, opts), nil
}

// Open opens an existing git repository at the configured location.
func Open(ctx context.Context, opts *Options) (*Repo, error) {
	layout, err := prepare(ctx, opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(layout.Storage, layout.Worktree)
	if err != nil {
		return nil, WrapError(err, "failed to open repository")
	}

	return newRepo(repo, layout, opts), nil
}

// Clone creates a new repository by cloning remoteURL. Nothing is checked out;
// branches are published straight from the object store.
func Clone(ctx context.Context, remoteURL string, opts *Options) (*Repo, error) {
	if remoteURL == "" {
		return nil, WrapError(ErrInvalidRef, "remote URL cannot be empty")
	}

	layout, err := prepare(ctx, opts)
	if err != nil {
		return nil, err
	}

	cloneOpts := &git.CloneOptions{
		URL:          remoteURL,
		Depth:        opts.ShallowDepth,
		SingleBranch: opts.ShallowDepth > 0,
		NoCheckout:   true,
	}

	if opts.Auth != nil {
		authMethod, authErr := opts.Auth.Method(remoteURL)
		if authErr != nil {
			return nil, WrapError(authErr, "failed to get authentication method")
		}
		cloneOpts.Auth = authMethod
	}

	repo, err := git.CloneContext(ctx, layout.Storage, layout.Worktree, cloneOpts)
	if err != nil {
		return nil, WrapError(err, "failed to clone repository")
	}

	return newRepo(repo, layout, opts), nil
}

func prepare(ctx context.Context, opts *Options) (*fsbridge.Layout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options")
	}

	opts.applyDefaults()

	layout, err := fsbridge.NewLayout(opts.FS, opts.Workdir, opts.Bare, opts.StorerCacheSize)
	if err != nil {
		return nil, WrapError(err, "failed to prepare repository storage")
	}
	return layout, nil
}

func newRepo(repo *git.Repository, layout *fsbridge.Layout, opts *Options) *Repo {
	return &Repo{
		repo:    repo,
		dotGit:  layout.Storage.Filesystem(),
		fs:      opts.FS,
		options: *opts,
		log:     opts.Logger,
	}
}

// AuthProvider resolves authentication methods for git operations.
type AuthProvider interface {
	// Method returns the appropriate transport.AuthMethod for the given remote URL.
	// Returns nil if no authentication is needed/available for this URL.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Signature identifies the author or committer of a commit.
type Signature struct {
	Name  string
	Email string

	// When is the signature time. The zero value means the commit time.
	When time.Time
}

// Repo is a git repository opened for publishing. It is safe for concurrent
// use; ref updates are serialized by a compare-and-swap.
type Repo struct {
	repo    *git.Repository
	fs      fs.Filesystem
	options Options
	log     *slog.Logger

	// dotGit is the storage root, where ref lock files are taken.
	dotGit billy.Filesystem

	// casMu guards the read-compare-write of branch refs.
	casMu sync.Mutex

	// casHook runs before each ref swap; tests use it to inject races.
	casHook func()
}
