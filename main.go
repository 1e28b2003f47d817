package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cgarena",
	Short: "A continuous tournament arena for game bots",
	Long: `cgarena runs a continuous bot tournament: bots are submitted as source
code, built by the worker pool, matched against each other and ranked with a
skill rating model.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
