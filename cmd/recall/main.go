package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anelcanto/recall/internal/apiclient"
)

var (
	apiURLFlag string
	tokenFlag  string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: "Personal semantic memory CLI",
		Long:  "recall stores, searches, and manages memories against a running recall server.",
	}

	cmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", os.Getenv("RECALL_API_URL"), "recall server base URL (default http://127.0.0.1:8100)")
	cmd.PersistentFlags().StringVar(&tokenFlag, "token", os.Getenv("RECALL_API_TOKEN"), "bearer token for the recall server")

	cmd.AddCommand(
		addCmd(),
		searchCmd(),
		ingestCmd(),
		listCmd(),
		deleteCmd(),
		statusCmd(),
	)

	return cmd
}

func client() *apiclient.Client {
	return apiclient.New(apiURLFlag, tokenFlag)
}
