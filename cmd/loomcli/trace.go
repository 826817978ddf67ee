package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var traceCmd = &cobra.Command{
	Use:   "trace [id]",
	Short: "Show a buffer's provenance",
	Long:  `Print the buffer's operation log from root to the current state, and the root buffer it traces back to.`,
	Args:  cobra.ExactArgs(1),
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

		chain := svc.GetProvenance(buf)
		if chain == nil {
			fmt.Println("no provenance recorded")
			return nil
		}

		branch := chain.Branch.Name
		if chain.Branch.IsMain {
			branch += " (main)"
		}
		fmt.Printf("chain:  %s\n", chain.ID)
		fmt.Printf("branch: %s\n", branch)
		fmt.Printf("root:   %s\n", chain.RootBufferID)
		fmt.Println()
		for i, op := range chain.Operations {
			ts := time.UnixMilli(op.Timestamp).UTC().Format(time.RFC3339)
			fmt.Printf("%3d  %-20s %s  %s/%s\n", i+1, op.Type, ts, op.Actor.Kind, op.Actor.ID)
			if op.Description != "" {
				fmt.Printf("     %s\n", op.Description)
			}
		}

		root, err := svc.TraceToOrigin(ctx, buf)
		if err != nil {
			return err
		}
		if root.ID != buf.ID {
			fmt.Printf("\norigin buffer: %s (%s)\n", root.ID, root.Origin.Kind)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
}
