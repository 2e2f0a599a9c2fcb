package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Dump the collection as JSON",
	Long:  `Dump the whole collection to a file, or to stdout when no file is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp()

		dump := a.svc.ExportAll(cmd.Context())
		raw, err := json.MarshalIndent(dump, "", "  ")
		if err != nil {
			return err
		}

		if len(args) == 0 {
			fmt.Println(string(raw))
			return nil
		}
		if err := os.WriteFile(args[0], raw, 0o600); err != nil {
			return err
		}
		fmt.Printf("exported %d repositories to %s\n", len(dump.Repos), args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge records from a JSON export",
	Long: `Merge records from a JSON export into the collection. Records that
are already stored are skipped, never overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		a, closeApp, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp()

		res, err := a.svc.Import(cmd.Context(), string(raw))
		if err != nil {
			return err
		}
		fmt.Printf("imported %d repositories, skipped %d\n", res.Added, res.Skipped)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push the collection to the remote store now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer closeApp()

		status, err := a.svc.SyncNow(cmd.Context())
		if err != nil {
			return err
		}
		if !status.Enabled {
			fmt.Println("sync is disabled; enable it first")
			return nil
		}
		// the metadata read after the push can fail independently
		if status.Meta == nil {
			fmt.Println("synced, but sync metadata is unavailable")
			return nil
		}
		fmt.Printf("synced %d of %d repositories (%d bytes)\n",
			status.Meta.SyncedCount, status.Meta.LocalCount, status.Meta.Bytes)
		return nil
	},
}
