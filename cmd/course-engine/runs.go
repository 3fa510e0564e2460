// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/course-engine/internal/config"
	"github.com/pdiddy/course-engine/internal/ledger"
	"github.com/pdiddy/course-engine/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run ledger (list, search, export)",
	Long: `Runs reads the SQLite ledger that generate writes to. Every run keeps
its settings, outcome and chapters; chapter text is indexed for full-text
search.`,
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := led.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	return formatRuns(cmd.OutOrStdout(), runs)
}

func formatRuns(w io.Writer, runs []ledger.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-9s  %-10s  %-8s  %-16s  %s\n",
		"ID", "Status", "Mode", "Chapters", "Started", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-9s  %-10s  %-8s  %-16s  %s\n",
			r.ID, r.Status, r.Mode, fmt.Sprintf("%d/%d", r.Chapters-r.Failed, r.Chapters),
			r.StartedAt.Local().Format(time.DateOnly+" 15:04"), truncate(r.Title, 40))
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

// --- search subcommand ---

var runsSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Full-text search over generated chapters",
	Long: `Search matches chapter titles, summaries, explanations and extensions
across all recorded runs using SQLite FTS5 query syntax.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRunsSearch,
}

func runRunsSearch(cmd *cobra.Command, args []string) error {
	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	hits, err := led.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), hits)
	}
	return formatHits(cmd.OutOrStdout(), hits)
}

func formatHits(w io.Writer, hits []ledger.Hit) error {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-30s  %-4s  %-30s  %s\n", "Rank", "Course", "Ch", "Chapter", "Snippet")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for i, h := range hits {
		fmt.Fprintf(w, "%-4d  %-30s  %-4d  %-30s  %s\n",
			i+1, truncate(h.RunTitle, 30), h.Index+1, truncate(h.Title, 30),
			strings.ReplaceAll(h.Snippet, "\n", " "))
	}
	fmt.Fprintf(w, "\n%d results\n", len(hits))
	return nil
}

// --- export subcommand ---

var runsExportCmd = &cobra.Command{
	Use:   "export RUN_ID",
	Short: "Export a run and its chapters as YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsExport,
}

func runRunsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	export, err := led.Export(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if format == "json" {
		return ledger.WriteJSON(cmd.OutOrStdout(), export)
	}
	return ledger.WriteYAML(cmd.OutOrStdout(), export)
}

// --- shared helpers ---

func openLedger() (*ledger.Ledger, error) {
	return ledger.Open(types.LedgerConfig{
		Enabled: true,
		Dir:     viper.GetString(config.KeyLedgerDir),
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	runsCmd.PersistentFlags().String("ledger-dir", ".course-engine", "directory holding the run ledger")
	_ = viper.BindPFlag(config.KeyLedgerDir, runsCmd.PersistentFlags().Lookup("ledger-dir"))

	runsListCmd.Flags().Int("limit", 20, "maximum runs to list")
	runsListCmd.Flags().Bool("json", false, "output runs as JSON")

	runsSearchCmd.Flags().Int("limit", 20, "maximum results")
	runsSearchCmd.Flags().Bool("json", false, "output results as JSON")

	runsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsSearchCmd)
	runsCmd.AddCommand(runsExportCmd)

	rootCmd.AddCommand(runsCmd)
}
