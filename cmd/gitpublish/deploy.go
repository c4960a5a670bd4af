package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/git"
)

type deployFlags struct {
	branch    string
	message   string
	remote    string
	dests     []string
	deletes   []string
	update    bool
	push      bool
	force     bool
	timestamp int64
}

// deployPlan is a deploy invocation after flags and config are merged.
type deployPlan struct {
	dir       string
	branch    string
	message   string
	remote    string
	dests     []string
	deletes   []git.Pattern
	update    bool
	push      bool
	force     bool
	timestamp *int64
}

func (a *app) deployCmd() *cobra.Command {
	var f deployFlags

	cmd := &cobra.Command{
		Use:   "deploy <dir>",
		Short: "Commit the contents of a directory onto a branch",
		Long: `Commit every regular file below <dir> onto the branch, on top of its
current tip. Files already on the branch are kept unless removed with --delete.`,
		Example: `  gitpublish deploy site --push
  gitpublish deploy build --dest docs --delete 'docs/*' --message "Rebuild docs"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := resolveDeploy(args[0], f, a.cfg, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return a.runDeploy(cmd.Context(), cmd.OutOrStdout(), plan)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.branch, "branch", "b", defaultBranch, "branch to commit to")
	flags.StringVarP(&f.message, "message", "m", "", "commit message (default: \"Publish <dir>\")")
	flags.StringVarP(&f.remote, "remote", "r", git.DefaultRemoteName, "remote used by --update and --push")
	flags.StringArrayVar(&f.dests, "dest", nil, "directory on the branch to publish into; repeatable")
	flags.StringArrayVar(&f.deletes, "delete", nil, "remove matching paths first: a path, a glob, or '*' for everything; repeatable")
	flags.BoolVarP(&f.update, "update", "u", false, "fast-forward the branch from the remote before committing")
	flags.BoolVarP(&f.push, "push", "p", false, "push the branch after committing")
	flags.BoolVarP(&f.force, "force", "f", false, "force the push")
	flags.Int64Var(&f.timestamp, "timestamp", 0, "commit time as unix seconds (default: $"+sourceDateEpochEnv+" or now)")
	return cmd
}

// resolveDeploy merges flags over the config file. changed reports whether
// a flag was set on the command line.
func resolveDeploy(dir string, f deployFlags, cfg fileConfig, changed func(string) bool) (deployPlan, error) {
	plan := deployPlan{
		dir:     dir,
		branch:  pick(changed("branch"), f.branch, cfg.Branch, defaultBranch),
		message: pick(changed("message"), f.message, cfg.Message, "Publish "+dir),
		remote:  pick(changed("remote"), f.remote, cfg.Remote, git.DefaultRemoteName),
		dests:   pickSlice(changed("dest"), f.dests, cfg.Destinations),
		update:  pick(changed("update"), f.update, cfg.Update, false),
		push:    pick(changed("push"), f.push, cfg.Push, false),
		force:   f.force,
	}

	for _, raw := range pickSlice(changed("delete"), f.deletes, cfg.Delete) {
		p, err := git.ParsePattern(raw)
		if err != nil {
			return deployPlan{}, fmt.Errorf("--delete %q: %w", raw, err)
		}
		plan.deletes = append(plan.deletes, p)
	}

	if changed("timestamp") {
		ts := f.timestamp
		plan.timestamp = &ts
	} else {
		ts, err := sourceDateEpoch()
		if err != nil {
			return deployPlan{}, err
		}
		plan.timestamp = ts
	}

	return plan, nil
}

func (a *app) runDeploy(ctx context.Context, out io.Writer, plan deployPlan) error {
	info, err := a.src.Stat(plan.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", plan.dir)
	}

	repo, err := a.repo(ctx)
	if err != nil {
		return err
	}

	if plan.update {
		if err := repo.PullBranch(ctx, plan.remote, plan.branch, false); err != nil {
			return err
		}
	}

	var opts []git.CommitOption
	if plan.timestamp != nil {
		opts = append(opts, git.WithTimestamp(*plan.timestamp))
	}

	sha, err := repo.WithCommit(ctx, plan.branch, plan.message, func(c *git.Commit) error {
		if len(plan.deletes) > 0 {
			if err := c.DeleteFiles(ctx, plan.deletes...); err != nil {
				return err
			}
		}
		return c.AddFiles(ctx, git.WalkFiles(a.src, plan.dir, plan.dests...))
	}, opts...)
	if err != nil {
		return err
	}
	a.log.Info("committed", "branch", plan.branch, "commit", sha, "dir", plan.dir)

	if plan.push {
		if err := repo.PushBranch(ctx, plan.remote, plan.branch, plan.force); err != nil {
			return err
		}
		a.log.Info("pushed", "remote", plan.remote, "branch", plan.branch)
	}

	fmt.Fprintln(out, sha)
	return nil
}
