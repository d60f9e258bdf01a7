package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/anelcanto/recall/internal/apiclient"
)

func listCmd() *cobra.Command {
	var (
		limit  int
		cursor string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"limit": {strconv.Itoa(limit)}}
			if cursor != "" {
				q.Set("cursor", cursor)
			}

			var body struct {
				Memories   []apiclient.ListMemoryItem `json:"memories"`
				NextCursor *string                    `json:"next_cursor"`
			}
			if err := client().Do(context.Background(), "GET", "/memories", q, nil, &body); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(body)
			}

			if len(body.Memories) == 0 {
				fmt.Println("no memories found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTAGS\tSOURCE\tWRITTEN AT\tTEXT")
			for _, m := range body.Memories {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					m.ID, joinTags(m.Tags), m.Source, truncateAt(m.WrittenAt, 19), truncateAt(m.Text, 60))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if body.NextCursor != nil && *body.NextCursor != "" {
				fmt.Printf("\nnext cursor: %s\n", *body.NextCursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of memories")
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor from a previous list")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")

	return cmd
}
