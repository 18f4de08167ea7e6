package main

import (
	"fmt"
	"os"

	"github.com/mongodb/grip"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "bookstore",
	Short:        "bookstore: HTTP API over a MongoDB collection of books",
	Long:         "Serves list, get, create, delete and partial update operations on book documents stored in MongoDB.",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	grip.SetName("bookstore")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
