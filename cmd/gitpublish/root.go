package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	gogit "github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs"
	fsb "github.com/input-output-hk/catalyst-forge-libs/gitpublish/fs/billy"
	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/git"
)

// app carries state shared by every subcommand.
type app struct {
	repoDir    string
	configPath string
	logLevel   string
	logFile    string

	// src reads the directories being published.
	src fs.Filesystem

	cfg    fileConfig
	log    *slog.Logger
	closer io.Closer

	// open is replaced in tests to supply an in-memory repository.
	open func(ctx context.Context, opts *git.Options) (*git.Repo, error)
}

func newRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func newApp() *app {
	a := &app{
		src:    fsb.NewBaseOSFS(),
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		closer: nopCloser{},
	}
	a.open = a.openOnDisk
	return a
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gitpublish",
		Short: "Publish a directory to a git branch without touching the working tree",
		Long: `gitpublish commits the contents of a directory onto a branch, such as
gh-pages, straight into the object store. The checked out branch, index and
working tree are never modified.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closer.Close()
		},
	}

	root.PersistentFlags().StringVarP(&a.repoDir, "repo", "C", ".", "path to the repository")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: <repo>/"+defaultConfigFile+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", "write logs to a rotating file")

	root.AddCommand(a.deployCmd())
	root.AddCommand(a.showCmd())
	root.AddCommand(a.pushCmd())
	root.AddCommand(a.logCmd())
	return root
}

// setup loads the config file and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath, a.repoDir)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := cfg.Log
	flags := cmd.Flags()
	logCfg.Level = pick(flags.Changed("log-level"), a.logLevel, logCfg.Level, "")
	logCfg.File = pick(flags.Changed("log-file"), a.logFile, logCfg.File, "")

	logger, closer, err := newLogger(cmd.ErrOrStderr(), logCfg)
	if err != nil {
		return err
	}
	a.log, a.closer = logger, closer
	return nil
}

// repoOptions builds library options from the loaded config.
func (a *app) repoOptions() *git.Options {
	opts := &git.Options{
		FS:           fsb.NewOSFS(a.repoDir),
		Logger:       a.log,
		SyncRetries:  a.cfg.Sync.Retries,
		ShallowDepth: a.cfg.Sync.Depth,
	}
	if a.cfg.Author.Name != "" || a.cfg.Author.Email != "" {
		opts.DefaultAuthor = &git.Signature{Name: a.cfg.Author.Name, Email: a.cfg.Author.Email}
	}

	opts.Auth = authProvider(a.cfg.Auth)
	return opts
}

func (a *app) repo(ctx context.Context) (*git.Repo, error) {
	return a.open(ctx, a.repoOptions())
}

// openOnDisk opens a repository with a .git directory, falling back to a
// bare repository at the same location.
func (a *app) openOnDisk(ctx context.Context, opts *git.Options) (*git.Repo, error) {
	repo, err := git.Open(ctx, opts)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, err
	}

	bare := *opts
	bare.Bare = true
	repo, bareErr := git.Open(ctx, &bare)
	if bareErr != nil {
		return nil, fmt.Errorf("%s is not a git repository: %w", a.repoDir, err)
	}
	return repo, nil
}

// authProvider chains the credentials configured in cfg. It returns nil
// when nothing is configured.
func authProvider(cfg authConfig) git.AuthProvider {
	var providers []git.AuthProvider

	tokenEnv := cfg.TokenEnv
	if tokenEnv == "" {
		tokenEnv = defaultTokenEnv
	}
	if token := os.Getenv(tokenEnv); token != "" {
		providers = append(providers, git.TokenAuth(token, cfg.Hosts...))
	}

	if cfg.SSHKey != "" {
		var passphrase string
		if cfg.SSHPassphraseEnv != "" {
			passphrase = os.Getenv(cfg.SSHPassphraseEnv)
		}
		providers = append(providers, git.SSHKeyAuth(cfg.SSHKey, passphrase, nil, cfg.Hosts...))
	}

	if cfg.SSHAgent {
		providers = append(providers, git.SSHAgentAuth(cfg.Hosts...))
	}

	switch len(providers) {
	case 0:
		return nil
	case 1:
		return providers[0]
	default:
		return git.ChainAuth(providers...)
	}
}
