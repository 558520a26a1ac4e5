// Package cli implements the parcel command line interface.
package cli

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// NewRootCmd creates the root command for the parcel CLI.
func NewRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "parcel",
		Short: "parcel - publish content-addressed packages to a registry",
		Long: `Parcel publishes locally built, content-addressed package archives
to a remote registry. Identical content is never stored twice: pushes are
keyed by the package's content hash, so re-running a publish is always safe.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(newPushCmd(&configPath))
	rootCmd.AddCommand(newQueryCmd(&configPath))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
