package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/group-harmony/internal/observability"
	"github.com/jonathan/group-harmony/internal/pipeline"
	"github.com/jonathan/group-harmony/internal/trace"
	"github.com/jonathan/group-harmony/internal/types"
)

var (
	recGroup       string
	recType        string
	recCategories  string
	recDestination string
	recDays        int
	recJSON        bool
	recShowLog     bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Run one recommendation for a group and print the result",
	Long: `Runs the same pipeline as POST /api/recommendations once and prints a formatted report.

Examples:
  harmony recommend --group ABC123 --type music
  harmony recommend --group ABC123 --categories movie,book
  harmony recommend --group ABC123 --type itinerary --destination Kyoto --days 2`,
	RunE: runRecommend,
}

func init() {
	recommendCmd.Flags().StringVarP(&recGroup, "group", "g", "", "Group join code")
	recommendCmd.Flags().StringVarP(&recType, "type", "t", "", "Category (music, movie, restaurant, travel, book, tv) or itinerary")
	recommendCmd.Flags().StringVar(&recCategories, "categories", "", "Comma-separated categories for a multi-category request")
	recommendCmd.Flags().StringVar(&recDestination, "destination", "", "Trip destination (itinerary only)")
	recommendCmd.Flags().IntVar(&recDays, "days", 0, "Trip length in days (itinerary only)")
	recommendCmd.Flags().BoolVar(&recJSON, "json", false, "Print the raw JSON response instead of a report")
	recommendCmd.Flags().BoolVarP(&recShowLog, "verbose", "v", false, "Also print the debug log")
	_ = recommendCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(recommendCmd)
}

// buildRequest assembles a request from flag values.
func buildRequest(group, typ, categories, destination string, days int) types.RecommendationRequest {
	req := types.RecommendationRequest{
		GroupID:     group,
		Type:        typ,
		Destination: destination,
		Days:        days,
	}
	for _, c := range strings.Split(categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			req.Categories = append(req.Categories, c)
		}
	}
	return req
}

func runRecommend(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, tr := trace.Start(ctx)
	req := buildRequest(recGroup, recType, recCategories, recDestination, recDays)

	result, err := a.orchestrator.Run(ctx, req)
	out := cmd.OutOrStdout()
	if err != nil {
		if recShowLog {
			observability.NewPrinter(os.Stderr).PrintDebugLog(tr.Lines())
		}
		return err
	}

	return printResult(out, result, recJSON, recShowLog)
}

func printResult(out io.Writer, result *pipeline.Result, asJSON, showLog bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Body()); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return nil
	}

	p := observability.NewPrinter(out)
	var debugLog []string
	if result.Itinerary != nil {
		p.PrintItinerary(result.Itinerary)
		debugLog = result.Itinerary.DebugLog
	} else {
		p.PrintRecommendation(result.Recommendation)
		debugLog = result.Recommendation.DebugLog
	}
	if showLog {
		p.PrintDebugLog(debugLog)
	}
	return nil
}
