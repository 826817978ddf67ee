package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittclouds/textloom/pkg/buffer"
)

var mergeSeparator string

var mergeCmd = &cobra.Command{
	Use:   "merge [id]...",
	Short: "Merge buffers into one",
	Long:  `Concatenate the given persisted buffers, in order, into a new generated buffer.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		ctx := context.Background()

		bufs := make([]*buffer.ContentBuffer, len(args))
		for i, id := range args {
			if bufs[i], err = svc.Load(ctx, id); err != nil {
				return err
			}
		}

		merged, err := svc.Merge(ctx, bufs, buffer.MergeOptions{JoinWith: mergeSeparator})
		if err != nil {
			return err
		}
		if err := svc.Save(ctx, merged); err != nil {
			return err
		}

		fmt.Printf("%s  (%d words from %d buffers)\n", merged.ID, merged.WordCount, len(bufs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().StringVar(&mergeSeparator, "separator", "", `Joining separator (default "\n\n")`)
}
