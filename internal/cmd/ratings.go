package cmd

import (
	"fmt"
	"io"

	"github.com/Digital-Shane/show-score/internal/ratings"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newRatingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratings",
		Short: "Manage the local IMDb ratings file",
	}
	cmd.AddCommand(newRatingsRefreshCmd(opts), newRatingsInfoCmd(opts))
	return cmd
}

func newRatingsRefreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Download the ratings file now and reload it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.catalog.Refresh(commandContext(cmd))
			if err != nil {
				return fmt.Errorf("refresh ratings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s ratings (snapshot v%d, %d malformed lines skipped)\n",
				humanize.Comma(int64(snap.Len())), snap.Version(), snap.Skipped())
			return nil
		},
	}
}

func newRatingsInfoCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show where the ratings file lives and whether it is stale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			info, err := a.catalog.Info()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			writeRatingsInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func writeRatingsInfo(w io.Writer, info ratings.Info) {
	fmt.Fprintf(w, "Path:     %s\n", info.Path)
	fmt.Fprintf(w, "URL:      %s\n", info.URL)
	if !info.Exists {
		fmt.Fprintln(w, "Status:   not downloaded")
		return
	}
	fmt.Fprintf(w, "Size:     %s\n", humanize.Bytes(uint64(info.Size)))
	fmt.Fprintf(w, "Modified: %s\n", humanize.Time(info.ModTime))
	fmt.Fprintf(w, "Stale:    %t\n", info.Stale)
}
