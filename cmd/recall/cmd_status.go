package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anelcanto/recall/internal/apiclient"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show API health status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp apiclient.HealthResponse
			if err := client().Do(context.Background(), "GET", "/health", nil, nil, &resp); err != nil {
				return err
			}

			fmt.Printf("status: %s\n", resp.Status)
			fmt.Printf("  qdrant: %s\n", formatTriState(resp.Qdrant))
			fmt.Printf("  ollama: %s\n", formatTriState(resp.Ollama))
			return nil
		},
	}
}

func formatTriState(b *bool) string {
	if b == nil {
		return "unknown"
	}
	if *b {
		return "true"
	}
	return "false"
}
