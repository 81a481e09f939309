package main

import (
	"github.com/spf13/cobra"
)

// Version is set via -ldflags.
var Version = "dev"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "motionctl",
		Short: "Attention and motion coordination engine",
		Long: titleStyle.Render("motionctl") + mutedStyle.Render(" - attention and motion coordination engine") + `

Runs the coordinator as a gRPC service, replays scripted scenarios against
virtual time and inspects the decision journal.

` + mutedStyle.Render("Examples:") + `
  motionctl serve --config motion.yaml
  motionctl replay scenarios/*.yaml
  motionctl inspect --dsn motion.db --last 50
  motionctl status --addr 127.0.0.1:7420`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (YAML); MOTION_* env vars override it")

	root.AddCommand(
		newServeCmd(opts),
		newReplayCmd(),
		newInspectCmd(),
		newStatusCmd(opts),
		newPauseCmd(opts),
		newResumeCmd(opts),
		newBudgetCmd(opts),
		newAuditCmd(opts),
	)
	return root
}
