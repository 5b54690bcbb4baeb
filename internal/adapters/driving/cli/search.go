package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
	searchTypes []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed records",
	Long: `Runs a keyword query against the index so you can check what has been
synced. Supported by the local sqlite and algolia indexes.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringSliceVarP(&searchTypes, "type", "t", nil, "only return these content types")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	results, err := app.Search.Search(ctx, args[0], domain.SearchOptions{
		Limit:        searchLimit,
		ContentTypes: searchTypes,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		// Format: [N] title (score)
		rec := results[i].Record
		title, _ := rec["title"].(string)
		if title == "" {
			title = rec.ObjectID()
		}

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, results[i].Score)
		if ct, _ := rec[domain.FieldContentType].(string); ct != "" {
			cmd.Printf("      Type: %s  ID: %s\n", ct, rec.ObjectID())
		} else {
			cmd.Printf("      ID: %s\n", rec.ObjectID())
		}
		if len(results[i].Highlights) > 0 {
			cmd.Printf("      %s\n", results[i].Highlights[0])
		}
		cmd.Println()
	}
	return nil
}
