package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var branchDescription string

var branchCmd = &cobra.Command{
	Use:   "branch [id] [name]",
	Short: "Fork a buffer onto a named branch",
	Long:  `Copy the buffer's history onto a new named branch chain and persist the branched buffer. The original buffer and its chain are untouched.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		ctx := context.Background()

		buf, err := svc.Load(ctx, args[0])
		if err != nil {
			return err
		}

		out, err := svc.Branch(ctx, buf, args[1], branchDescription)
		if err != nil {
			return err
		}
		if err := svc.Save(ctx, out); err != nil {
			return err
		}

		fmt.Printf("%s  on branch %q (chain %s)\n", out.ID, args[1], out.Chain.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(branchCmd)
	branchCmd.Flags().StringVar(&branchDescription, "description", "", "Why this branch exists")
}
