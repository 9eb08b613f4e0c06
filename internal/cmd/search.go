package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Digital-Shane/show-score/internal/provider"
	"github.com/spf13/cobra"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <title>",
		Short: "List series matching a title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			query := strings.Join(args, " ")
			results, err := a.registry.Search(commandContext(cmd), query)
			if err != nil {
				return fmt.Errorf("search %q: %w", query, err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			writeSearchResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func writeSearchResults(w io.Writer, results []provider.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching series.")
		return
	}
	rows := make([][]string, 0, len(results))
	for i, res := range results {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			res.Title,
			res.Year,
			res.Kind,
			res.IMDbID,
			res.Provider,
			res.ID,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Title", "Year", "Kind", "IMDb ID", "Provider", "ID"},
		rows,
		[]columnAlignment{alignRight},
	))
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
