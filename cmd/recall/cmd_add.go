package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anelcanto/recall/internal/apiclient"
)

func addCmd() *cobra.Command {
	var (
		tags      []string
		source    string
		dedupeKey string
	)

	cmd := &cobra.Command{
		Use:   "add TEXT",
		Short: "Store a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := apiclient.StoreRequest{
				Text:      args[0],
				Tags:      tags,
				Source:    source,
				DedupeKey: dedupeKey,
			}

			var resp apiclient.StoreResponse
			if err := client().Do(context.Background(), "POST", "/memory", nil, req, &resp); err != nil {
				return err
			}

			fmt.Printf("stored id=%s strategy=%s\n", resp.ID, resp.IDStrategy)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag(s) to attach")
	cmd.Flags().StringVarP(&source, "source", "s", "cli", "source identifier")
	cmd.Flags().StringVarP(&dedupeKey, "dedupe-key", "d", "", "deduplication key")

	return cmd
}

func joinTags(tags []string) string {
	return strings.Join(tags, ", ")
}
