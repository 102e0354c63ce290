package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{Use: "trackctl", Short: "Drive the transactional state-track engine"}
	rootCmd.AddCommand(TrackCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
