package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootOptions carries the persistent flags shared by every subcommand.
type rootOptions struct {
	logLevel  string
	logFormat string
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "show-score",
		Short: "Score TV series episodes against IMDb ratings",
		Long: `show-score lists every episode of a TV series with its IMDb rating and vote
count, and flags episodes whose rating falls outside their season's band
(season mean plus or minus k sample standard deviations).

Episodes come from OMDb; TMDB and TVDB help find the right series. Ratings
come from the public IMDb title.ratings dataset, cached locally.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (default from config)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: console or json (default from config)")

	root.AddCommand(
		newServeCmd(opts),
		newSearchCmd(opts),
		newScoresCmd(opts),
		newBrowseCmd(opts),
		newRatingsCmd(opts),
		newConfigCmd(),
	)
	return root
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
