package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rafters-studio/motion-coordinator/internal/replay"
)

type replayOptions struct {
	journalDSN string
	verbose    bool
}

func newReplayCmd() *cobra.Command {
	opts := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay <fixture>...",
		Short: "Replay scenario fixtures on virtual time and audit every step",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				ok, err := replayOne(cmd.OutOrStdout(), path, opts)
				if err != nil {
					return err
				}
				if !ok {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d fixtures failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.journalDSN, "journal", "", "record decisions to this SQLite file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "print every step")
	return cmd
}

// #region replay-one
func replayOne(w io.Writer, path string, opts *replayOptions) (bool, error) {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return false, err
	}
	rep, err := replay.Replay(f, replay.Options{JournalDSN: opts.journalDSN})
	if err != nil {
		return false, err
	}
	s := replay.Summarize(rep.Results)

	fmt.Fprintf(w, "%s %s\n", passFail(s.Passed), titleStyle.Render(path))
	if rep.Description != "" {
		fmt.Fprintln(w, "  "+mutedStyle.Render(rep.Description))
	}
	for _, r := range rep.Results {
		if !opts.verbose && r.Match && r.Audit.Passed {
			continue
		}
		line := fmt.Sprintf("  #%-3d %-18s %-16s t=%s", r.Index, r.Op, r.Outcome, r.At)
		switch {
		case !r.Match:
			fmt.Fprintln(w, errorStyle.Render(line))
			for _, m := range r.Mismatches {
				fmt.Fprintln(w, "       "+warningStyle.Render(m))
			}
		case !r.Audit.Passed:
			fmt.Fprintln(w, errorStyle.Render(line))
		default:
			fmt.Fprintln(w, line)
		}
		if !r.Audit.Passed {
			fmt.Fprintln(w, "       "+warningStyle.Render(r.Audit.Reason))
		}
	}

	fmt.Fprintln(w, "  "+row("steps", s.TotalSteps))
	fmt.Fprintln(w, "  "+row("mismatches", s.Mismatches))
	fmt.Fprintln(w, "  "+row("audit failures", s.AuditFailures))
	fmt.Fprintln(w, "  "+row("final controller load", rep.Final.Controller.CurrentLoad))
	fmt.Fprintln(w, "  "+row("final arbiter load", rep.Final.Arbiter.CurrentLoad))
	if opts.verbose {
		keys := make([]string, 0, len(s.Outcomes))
		for k := range s.Outcomes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintln(w, "  "+row(k, s.Outcomes[k]))
		}
	}
	return s.Passed, nil
}

// #endregion replay-one
