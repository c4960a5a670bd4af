package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/gitpublish/git"
)

func (a *app) logCmd() *cobra.Command {
	var (
		maxCount int
		paths    []string
		stat     bool
	)

	cmd := &cobra.Command{
		Use:   "log [branch]",
		Short: "List the commits published to a branch",
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

			filter := git.HistoryFilter{MaxCount: maxCount}
			for _, raw := range paths {
				p, err := git.ParsePattern(raw)
				if err != nil {
					return fmt.Errorf("--path %q: %w", raw, err)
				}
				filter.Paths = append(filter.Paths, p)
			}

			repo, err := a.repo(ctx)
			if err != nil {
				return err
			}
			entries, err := repo.History(ctx, branch, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s %s\n", e.Hash[:12], e.Subject())
				if !stat {
					continue
				}
				for _, c := range e.Changes {
					fmt.Fprintf(out, "    %s %s\n", c.Action, c.Path)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxCount, "max-count", "n", 0, "show at most this many commits")
	cmd.Flags().StringArrayVar(&paths, "path", nil, "only commits touching a matching path; repeatable")
	cmd.Flags().BoolVar(&stat, "stat", false, "list the paths each commit changed")
	return cmd
}
