package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) showCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "show <rev> [path]",
		Short: "Print the commit a revision points at, or a file from a branch",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := a.repo(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 2 {
				content, err := repo.ReadFile(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				_, err = out.Write(content)
				return err
			}

			ref, err := repo.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if verbose {
				fmt.Fprintf(out, "%s %s %s\n", ref.Hash, ref.Kind, ref.CanonicalName)
				return nil
			}
			fmt.Fprintln(out, ref.Hash)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also print the ref kind and full name")
	return cmd
}
