package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a persisted buffer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}

		buf, err := svc.Load(context.Background(), args[0])
		if err != nil {
			return err
		}

		if showJSON {
			return printJSON(buf)
		}
		fmt.Printf("id:        %s\n", buf.ID)
		fmt.Printf("hash:      %s\n", buf.ContentHash)
		fmt.Printf("state:     %s\n", buf.State)
		fmt.Printf("origin:    %s\n", buf.Origin.Kind)
		fmt.Printf("words:     %d\n", buf.WordCount)
		fmt.Printf("format:    %s\n", buf.Format)
		if buf.Chain != nil {
			fmt.Printf("chain:     %s (%d operations)\n", buf.Chain.ID, len(buf.Chain.Operations))
		}
		fmt.Println()
		fmt.Println(buf.Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output the full buffer as JSON")
}
