package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeDetectAI bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [id]",
	Short: "Compute quality metrics for a buffer",
	Long:  `Derive a new buffer carrying readability and voice metrics, optionally with an AI-generation estimate, and persist it.`,
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

		out, err := svc.AnalyzeQuality(ctx, buf)
		if err != nil {
			return err
		}
		if analyzeDetectAI {
			if out, err = svc.DetectAI(ctx, out); err != nil {
				return err
			}
		}
		if err := svc.Save(ctx, out); err != nil {
			return err
		}

		q := out.Quality
		fmt.Printf("buffer:           %s\n", out.ID)
		fmt.Printf("grade level:      %.1f\n", q.Readability.GradeLevel)
		fmt.Printf("sentences:        %d\n", q.Readability.SentenceCount)
		fmt.Printf("avg sentence len: %.1f words\n", q.Readability.AvgSentenceLength)
		fmt.Printf("lexical density:  %.2f\n", q.Voice.LexicalDensity)
		fmt.Printf("type/token ratio: %.2f\n", q.Voice.TypeTokenRatio)
		if q.AIDetection != nil {
			fmt.Printf("ai probability:   %.2f (confidence %.2f, %d tells)\n",
				q.AIDetection.Probability, q.AIDetection.Confidence, len(q.AIDetection.Tells))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&analyzeDetectAI, "detect-ai", false, "Also estimate AI-generation likelihood")
}
