package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittclouds/textloom/pkg/textutil"
)

var findByText bool

var findCmd = &cobra.Command{
	Use:   "find [hash|text]",
	Short: "Find buffers by content hash",
	Long:  `List every persisted buffer with the given content hash. With --text the argument is hashed first, so identical content can be found without knowing its digest.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		hash := args[0]
		if findByText {
			text, err := readInput(args[0])
			if err != nil {
				return err
			}
			hash = textutil.Hash(text)
		}

		bufs, err := svc.FindByContentHash(context.Background(), hash)
		if err != nil {
			return err
		}
		if len(bufs) == 0 {
			fmt.Println("no buffers match")
			return nil
		}
		for _, buf := range bufs {
			fmt.Printf("%s  %s  %s\n", buf.ID, buf.Origin.Kind, buf.State)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(findCmd)
	findCmd.Flags().BoolVar(&findByText, "text", false, "Treat the argument as text to hash")
}
