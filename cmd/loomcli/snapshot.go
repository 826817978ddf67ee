package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kittclouds/textloom/internal/store"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Export or import a store snapshot",
}

var snapshotExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the whole store to a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := sqliteStore()
		if err != nil {
			return err
		}
		data, err := st.Export(context.Background())
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), args[0])
		return nil
	},
}

var snapshotImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace the store's contents from a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		st, err := sqliteStore()
		if err != nil {
			return err
		}
		if err := st.Import(context.Background(), data); err != nil {
			return err
		}
		fmt.Printf("imported %s\n", args[0])
		return nil
	},
}

// sqliteStore opens the configured store and requires the sqlite
// driver, since snapshots only make sense against a database file.
func sqliteStore() (*store.SQLiteStore, error) {
	if cfg.Store.Driver != "sqlite" || cfg.Store.Path == "" {
		return nil, fmt.Errorf("snapshot requires store.driver=sqlite with a file path")
	}
	return store.NewSQLiteStoreWithDSN(cfg.Store.Path)
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotExportCmd)
	snapshotCmd.AddCommand(snapshotImportCmd)
}
