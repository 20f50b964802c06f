// Trashcam - real-time trash classification from a webcam.
// Extracts color, shape and texture features from every frame, hands them to
// an external classifier and overlays the returned label on the live view.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by the linker: -ldflags "-X main.version=v1.2.3"
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "trashcam",
	Short:         "Real-time trash classification from a webcam",
	Long:          `Captures webcam frames, extracts color, shape and texture features, runs an external classifier on them and shows the label on the live view. Press q in the window to quit.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	// Running the classification loop is the default action.
	rootCmd.RunE = runClassification
	rootCmd.Args = cobra.NoArgs
	addRunFlags(rootCmd.Flags())
	addRunFlags(runCmd.Flags())

	rootCmd.AddCommand(runCmd, extractCmd, nearestCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "trashcam", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
