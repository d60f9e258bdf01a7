package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anelcanto/recall/internal/apiclient"
)

const ingestBatchSize = 100

func ingestCmd() *cobra.Command {
	var (
		format     string
		source     string
		autoDedupe bool
	)

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Ingest memories from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readIngestItems(args[0], format, source)
			if err != nil {
				return err
			}
			if autoDedupe {
				for i := range items {
					src := items[i].Source
					if src == "" {
						src = source
					}
					sum := sha256.Sum256([]byte(items[i].Text + src))
					items[i].DedupeKey = hex.EncodeToString(sum[:])
				}
			}

			succeeded, failed := 0, 0
			for start := 0; start < len(items); start += ingestBatchSize {
				end := start + ingestBatchSize
				if end > len(items) {
					end = len(items)
				}

				var body apiclient.IngestResponse
				req := apiclient.IngestRequest{Items: items[start:end]}
				if err := client().Do(context.Background(), "POST", "/ingest", nil, req, &body); err != nil {
					return err
				}

				succeeded += body.Succeeded
				failed += body.Failed
				for _, e := range body.Errors {
					fmt.Printf("  error item %d: %s\n", start+e.Index, e.Error)
				}
			}

			fmt.Printf("ingested %d succeeded, %d failed\n", succeeded, failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "lines", "input format: lines|jsonl")
	cmd.Flags().StringVarP(&source, "source", "s", "ingest", "source identifier")
	cmd.Flags().BoolVar(&autoDedupe, "auto-dedupe", false, "derive a dedupe key from text+source")

	return cmd
}

func readIngestItems(path, format, source string) ([]apiclient.StoreRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	defer f.Close()

	var items []apiclient.StoreRequest
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if format == "jsonl" {
			var item apiclient.StoreRequest
			if err := json.Unmarshal([]byte(line), &item); err != nil {
				return nil, fmt.Errorf("invalid jsonl line: %w", err)
			}
			items = append(items, item)
		} else {
			items = append(items, apiclient.StoreRequest{Text: line, Source: source})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
