package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	similarLimit int
	similarMin   float64
)

var similarCmd = &cobra.Command{
	Use:   "similar [id]",
	Short: "Find buffers similar to one",
	Long:  `Embed the buffer if needed, then search persisted buffers by cosine similarity. Requires an OpenAI API key for embedding.`,
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
		if len(buf.Embedding) == 0 {
			if buf, err = svc.Embed(ctx, buf); err != nil {
				return err
			}
			if err := svc.Save(ctx, buf); err != nil {
				return err
			}
		}

		results, err := svc.FindSimilar(ctx, buf, similarLimit, similarMin)
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Buffer.ID == buf.ID {
				continue
			}
			fmt.Printf("%.4f  %s  (%d words)\n", r.Similarity, r.Buffer.ID, r.Buffer.WordCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(similarCmd)
	similarCmd.Flags().IntVar(&similarLimit, "limit", 10, "Maximum results")
	similarCmd.Flags().Float64Var(&similarMin, "min-similarity", 0, "Minimum cosine similarity")
}
