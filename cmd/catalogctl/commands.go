package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"media-catalog/internal/indexer"
	"media-catalog/internal/ingest"
)

func newAnalyzeCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyse every image that has not been analysed yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd.Context(), func(p *pipeline) error {
				report, err := p.coord.AnalyzePending(cmd.Context(), workersOr(workers, p.config.EnrichWorkers))
				if err != nil {
					return err
				}
				return printReport(cmd, "analyze", report)
			})
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel analyses (default ENRICH_WORKERS)")
	return cmd
}

func newDerivativesCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "derivatives",
		Short: "Generate missing thumbnails and previews for every item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd.Context(), func(p *pipeline) error {
				report, err := p.coord.EnsureAllDerivatives(cmd.Context(), workersOr(workers, p.config.EnrichWorkers))
				if err != nil {
					return err
				}
				return printReport(cmd, "derivatives", report)
			})
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel items (default ENRICH_WORKERS)")
	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile the library directory with the catalog",
		Long: `Visit every media file in the library directory: catalogue new files,
discard duplicates, backfill missing digests and resume enrichment that never
finished. Enrichment scheduled by the sweep completes before the command exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd.Context(), func(p *pipeline) error {
				summary, err := p.indexer().Sweep(cmd.Context(), indexer.TriggerManual)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !isTerminal(out) {
					return json.NewEncoder(out).Encode(summary)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "processed\t%d\n", summary.Processed)
				fmt.Fprintf(tw, "created\t%d\n", summary.Created)
				fmt.Fprintf(tw, "duplicates\t%d\n", summary.Duplicates)
				fmt.Fprintf(tw, "backfilled\t%d\n", summary.Backfilled)
				fmt.Fprintf(tw, "resumed\t%d\n", summary.Resumed)
				fmt.Fprintf(tw, "rejected\t%d\n", summary.Rejected)
				fmt.Fprintf(tw, "failed\t%d\n", summary.Failed)
				fmt.Fprintf(tw, "duration\t%s\n", summary.Duration)
				if err := tw.Flush(); err != nil {
					return err
				}
				for _, msg := range summary.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), msg)
				}
				if summary.Failed > 0 {
					return fmt.Errorf("sweep: %d files failed", summary.Failed)
				}
				return nil
			})
		},
	}
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Move files into the library and catalogue them",
		Long: `Catalogue each file under its own name. A file whose content is already
catalogued is deleted; a new file is moved into the library directory, so it
must be on the same filesystem.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(p *pipeline) error {
				report := ingest.NewBatchReport()
				for _, arg := range args {
					path, err := filepath.Abs(arg)
					if err != nil {
						report.AddError(arg, err)
						continue
					}
					res := p.coord.Ingest(cmd.Context(), ingest.Candidate{Path: path, Source: ingest.SourceCLI})
					report.Add(res)
					id := "-"
					if res.Item != nil {
						id = strconv.FormatInt(res.Item.ID, 10)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", res.Outcome, id, arg)
				}
				return reportErr(cmd, "ingest", report)
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete items with their originals and derivatives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}

			return withPipeline(cmd.Context(), func(p *pipeline) error {
				report := ingest.NewBatchReport()
				for _, id := range ids {
					err := p.coord.Delete(cmd.Context(), id)
					if errors.Is(err, ingest.ErrNotFound) {
						err = errors.New("no such item")
					}
					report.AddError(fmt.Sprintf("item %d", id), err)
					if err == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "deleted\t%d\n", id)
					}
				}
				return reportErr(cmd, "delete", report)
			})
		},
	}
}

func newStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print catalog counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPipeline(cmd.Context(), func(p *pipeline) error {
				stats, err := p.db.GetStats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON || !isTerminal(out) {
					return json.NewEncoder(out).Encode(stats)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "items\t%d\n", stats.TotalItems)
				fmt.Fprintf(tw, "images\t%d\n", stats.TotalImages)
				fmt.Fprintf(tw, "videos\t%d\n", stats.TotalVideos)
				fmt.Fprintf(tw, "analysed\t%d\n", stats.Analyzed)
				fmt.Fprintf(tw, "pending analysis\t%d\n", stats.PendingAnalysis)
				fmt.Fprintf(tw, "missing digest\t%d\n", stats.MissingHash)
				fmt.Fprintf(tw, "favorites\t%d\n", stats.Favorites)
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON even on a terminal")
	return cmd
}

func workersOr(flag, fallback int) int {
	if flag > 0 {
		return flag
	}
	return fallback
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printReport writes a batch summary to stdout and its failures to stderr.
func printReport(cmd *cobra.Command, name string, report *ingest.BatchReport) error {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items processed, %d failed\n", name, report.Processed(), report.ErrorCount())
	return reportErr(cmd, name, report)
}

func reportErr(cmd *cobra.Command, name string, report *ingest.BatchReport) error {
	for _, msg := range report.Errors() {
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
	}
	return report.Err(name)
}
