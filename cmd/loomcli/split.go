package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittclouds/textloom/pkg/buffer"
)

var (
	splitStrategy string
	splitMaxSize  int
	splitOverlap  int
)

var splitCmd = &cobra.Command{
	Use:   "split [id]",
	Short: "Split a buffer into chunks",
	Long:  `Split a persisted buffer into independent chunk buffers and persist them. Strategies: sentences, paragraphs, fixed_length, semantic.`,
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

		chunks, err := svc.Split(ctx, buf, buffer.SplitOptions{
			Strategy:     buffer.SplitStrategy(splitStrategy),
			MaxChunkSize: splitMaxSize,
			Overlap:      splitOverlap,
		})
		if err != nil {
			return err
		}

		for i, chunk := range chunks {
			if err := svc.Save(ctx, chunk); err != nil {
				return err
			}
			fmt.Printf("%d/%d  %s  (%d words)\n", i+1, len(chunks), chunk.ID, chunk.WordCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().StringVar(&splitStrategy, "strategy", "paragraphs", "Split strategy")
	splitCmd.Flags().IntVar(&splitMaxSize, "max-size", 0, "Chunk size in words for fixed_length")
	splitCmd.Flags().IntVar(&splitOverlap, "overlap", 0, "Overlapping words between fixed_length chunks")
}
