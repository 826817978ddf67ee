package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rewriteStyle string

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [id] [persona-id]",
	Short: "Rewrite a buffer in a persona's voice",
	Long:  `Rewrite the buffer's text through the configured chat model in the voice of a stored persona. Requires an OpenAI API key.`,
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

		out, err := svc.RewriteForPersona(ctx, buf, args[1], rewriteStyle)
		if err != nil {
			return err
		}
		if err := svc.Save(ctx, out); err != nil {
			return err
		}

		fmt.Printf("%s\n\n%s\n", out.ID, out.Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rewriteCmd)
	rewriteCmd.Flags().StringVar(&rewriteStyle, "style", "", "Style profile id")
}
