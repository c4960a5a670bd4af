package main

import (
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/git"
)

func (a *app) pushCmd() *cobra.Command {
	var (
		remote string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "push [branch]",
		Short: "Push a branch to a remote",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			branch := defaultBranch
			switch {
			case len(args) == 1:
				branch = args[0]
			case a.cfg.Branch != "":
				branch = a.cfg.Branch
			}
			remote = pick(cmd.Flags().Changed("remote"), remote, a.cfg.Remote, git.DefaultRemoteName)

			repo, err := a.repo(ctx)
			if err != nil {
				return err
			}
			if err := repo.PushBranch(ctx, remote, branch, force); err != nil {
				return err
			}
			a.log.Info("pushed", "remote", remote, "branch", branch)
			return nil
		},
	}

	cmd.Flags().StringVarP(&remote, "remote", "r", git.DefaultRemoteName, "remote to push to")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "force the push")
	return cmd
}
