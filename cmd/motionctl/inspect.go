package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rafters-studio/motion-coordinator/internal/events"
	"github.com/rafters-studio/motion-coordinator/internal/journal"
)

type inspectOptions struct {
	dsn     string
	last    int
	jsonOut bool
}

type inspectReport struct {
	Counts  map[events.Kind]int `json:"counts"`
	Entries []journal.Entry     `json:"entries"`
}

func newInspectCmd() *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show recent decisions and per-kind totals from a journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return inspect(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.dsn, "dsn", "", "journal SQLite file")
	cmd.Flags().IntVar(&opts.last, "last", 20, "show N most recent decisions")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "output as JSON instead of a table")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}

// #region inspect
func inspect(cmd *cobra.Command, opts *inspectOptions) error {
	if opts.dsn == journal.MemoryDSN {
		return fmt.Errorf("an in-memory journal cannot be inspected")
	}
	store, err := journal.Open(opts.dsn, zerolog.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.CountByKind()
	if err != nil {
		return err
	}
	entries, err := store.List(opts.last)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if opts.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(inspectReport{Counts: counts, Entries: entries})
	}

	fmt.Fprintln(w, titleStyle.Render("decisions by kind"))
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintln(w, "  "+row(k, counts[events.Kind(k)]))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("last %d decisions", len(entries))))
	for _, e := range entries {
		subject := e.SurfaceID
		if e.RequestID != "" {
			subject += "/" + e.RequestID
		}
		line := fmt.Sprintf("  %5d %s %-10s %-22s %s",
			e.Seq, e.CreatedAt.Format("15:04:05.000"), e.Source, e.Kind, subject)
		if e.Limit > 0 {
			line += mutedStyle.Render(fmt.Sprintf(" load=%d/%d", e.Load, e.Limit))
		}
		if e.Reason != "" {
			line += " " + warningStyle.Render(e.Reason)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

// #endregion inspect
