package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/anelcanto/recall/internal/apiclient"
)

func searchCmd() *cobra.Command {
	var (
		topK   int
		noText bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search memories by semantic similarity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := apiclient.SearchRequest{Query: args[0], TopK: topK, IncludeText: !noText}

			var body struct {
				Results []apiclient.SearchResultItem `json:"results"`
			}
			if err := client().Do(context.Background(), "POST", "/search", nil, req, &body); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(body.Results)
			}

			if len(body.Results) == 0 {
				fmt.Println("no results found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			header := "SCORE\tID\tTAGS\tWRITTEN AT"
			if !noText {
				header += "\tTEXT"
			}
			fmt.Fprintln(w, header)
			for _, r := range body.Results {
				row := fmt.Sprintf("%.3f\t%s\t%s\t%s", r.Score, r.ID, joinTags(r.Tags), truncateAt(r.WrittenAt, 19))
				if !noText {
					row += "\t" + truncateAt(r.Text, 80)
				}
				fmt.Fprintln(w, row)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "maximum number of results")
	cmd.Flags().BoolVar(&noText, "no-text", false, "omit memory text from results")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")

	return cmd
}

func truncateAt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
