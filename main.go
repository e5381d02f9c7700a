package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webstream",
		Short: "Incremental HTML/XML document parser",
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log parse errors and engine activity")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	}

	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newFetchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
