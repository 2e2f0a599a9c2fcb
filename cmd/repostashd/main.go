// Package main provides the repostashd daemon and its maintenance CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "repostashd",
	Short: "Repostashd stores and syncs bookmarked repositories",
	Long: `Repostashd is the local daemon behind the repository bookmarking
clients. It keeps the collection in a tiered SQLite store, serves the
command surface over a local websocket, and optionally mirrors the
collection to an S3-compatible remote so multiple devices converge.`,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(syncCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("repostashd v0.1.0")
	},
}
