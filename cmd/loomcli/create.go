package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kittclouds/textloom/pkg/buffer"
)

var (
	createAuthor   string
	createPlatform string
	createJSON     bool
)

var createCmd = &cobra.Command{
	Use:   "create [text]",
	Short: "Create a buffer from text",
	Long:  `Create a transient buffer from the given text (or stdin with "-") and persist it. Prints the new buffer's id.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args[0])
		if err != nil {
			return err
		}

		svc, err := newService()
		if err != nil {
			return err
		}

		buf, err := svc.CreateFromText(text, buffer.CreateOptions{
			Author:         createAuthor,
			SourcePlatform: createPlatform,
		})
		if err != nil {
			return err
		}
		if err := svc.Save(context.Background(), buf); err != nil {
			return err
		}

		if createJSON {
			return printJSON(buf)
		}
		fmt.Printf("%s  (%d words, %s)\n", buf.ID, buf.WordCount, buf.Format)
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createAuthor, "author", "", "Author recorded in the manual origin")
	createCmd.Flags().StringVar(&createPlatform, "platform", "", "Source platform recorded in the origin")
	createCmd.Flags().BoolVar(&createJSON, "json", false, "Output the full buffer as JSON")
}
