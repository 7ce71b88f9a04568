package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/bazaar-khobor/internal/app"
	"github.com/Adda-Baaj/bazaar-khobor/internal/domain"
	"github.com/Adda-Baaj/bazaar-khobor/pkg/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Analyze one article and store the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, _ := cmd.Flags().GetString("symbol")
		name, _ := cmd.Flags().GetString("name")
		force, _ := cmd.Flags().GetBool("force")
		stock := domain.StockIdentity{Symbol: symbol, Name: name}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			run := a.Orchestrator.AnalyzeURL
			if force {
				run = a.Orchestrator.ForceAnalyzeURL
			}
			out, err := run(ctx, args[0], stock)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), outcomeView(out))
		})
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Identify the stock an article covers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out, err := a.Orchestrator.ExtractStockInfo(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	},
}

var contentCmd = &cobra.Command{
	Use:   "content <url>",
	Short: "Fetch and extract an article without analyzing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			art := a.Orchestrator.FetchArticle(ctx, args[0])
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"title":       art.Title,
				"url":         art.URL,
				"source":      art.Source,
				"publishDate": art.PublishDate.Format(time.RFC3339),
				"failed":      art.IsFailed(),
				"failReason":  art.FailReason,
				"content":     art.Content,
			})
		})
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze every URL listed in a file, one per line",
	Long: `Analyze every URL listed in a file, one per line. A line may carry a
symbol and company name after the URL, separated by whitespace:

  https://finance.yahoo.com/news/abc.html NVDA NVIDIA`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		items, err := readItems(path)
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			out := a.Paced().Batch(ctx, items, func(done int, results []pipeline.Outcome) {
				o := results[done-1]
				log.InfoObj("batch item finished", "batch_progress", map[string]any{
					"done":   done,
					"total":  len(results),
					"url":    o.URL,
					"status": string(o.Status()),
				})
			})
			views := make([]map[string]any, len(out))
			for i, o := range out {
				views[i] = outcomeView(o)
			}
			return printJSON(cmd.OutOrStdout(), views)
		})
	},
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Discover new articles from configured providers and analyze them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if a.Harvester == nil {
				return fmt.Errorf("no providers configured in %q", cfg.Discovery.ProvidersFile)
			}
			report := a.Harvester.Run(ctx)
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"providers":  report.Providers,
				"discovered": report.Discovered,
				"queued":     report.Queued,
				"statuses":   report.Counts(),
				"errors":     report.Errors,
			})
		})
	},
}

func init() {
	analyzeCmd.Flags().String("symbol", "", "ticker symbol; resolved from the article when empty")
	analyzeCmd.Flags().String("name", "", "company name")
	analyzeCmd.Flags().Bool("force", false, "re-analyze even when a record exists")

	batchCmd.Flags().StringP("file", "f", "", "file with one URL per line")
	_ = batchCmd.MarkFlagRequired("file")
}

// readItems parses a URL list. Blank lines and lines starting with # are
// ignored.
func readItems(path string) ([]pipeline.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url list: %w", err)
	}
	defer f.Close()
	return parseItems(f)
}

func parseItems(r io.Reader) ([]pipeline.Item, error) {
	var items []pipeline.Item
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		it := pipeline.Item{URL: fields[0]}
		if len(fields) > 1 {
			it.Stock.Symbol = fields[1]
		}
		if len(fields) > 2 {
			it.Stock.Name = strings.Join(fields[2:], " ")
		}
		items = append(items, it)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	if len(items) == 0 {
		return nil, errors.New("url list is empty")
	}
	return items, nil
}

func outcomeView(o pipeline.Outcome) map[string]any {
	v := map[string]any{
		"url":    o.URL,
		"status": string(o.Status()),
	}
	if o.Reason != "" {
		v["reason"] = o.Reason
	}
	if o.Stock.Symbol != "" {
		v["symbol"] = o.Stock.Symbol
		v["company"] = o.Stock.Name
	}
	if o.Article != nil {
		v["title"] = o.Article.Title
		v["publishDate"] = o.Article.PublishDate.Format(time.RFC3339)
	}
	if o.Analysis != nil {
		v["summary"] = o.Analysis.Summary
		v["sentiment"] = o.Analysis.Sentiment.Label()
	}
	if o.Err != nil {
		v["error"] = o.Err.Error()
		v["analysisError"] = o.AnalysisError
	}
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
