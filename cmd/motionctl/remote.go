package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rafters-studio/motion-coordinator/internal/config"
	"github.com/rafters-studio/motion-coordinator/internal/control"
	"github.com/rafters-studio/motion-coordinator/internal/motion"
)

const rpcTimeout = 5 * time.Second

// #region remote-helpers
type remoteOptions struct {
	root *rootOptions
	addr string
}

func addRemoteFlags(cmd *cobra.Command, ro *remoteOptions) {
	cmd.Flags().StringVar(&ro.addr, "addr", "", "control service address (default from config)")
}

// withClient dials the control service, resolving the address from the
// flag or the loaded config, and runs fn with a bounded context.
func withClient(cmd *cobra.Command, ro *remoteOptions, fn func(context.Context, *control.Client) error) error {
	addr := ro.addr
	if addr == "" {
		cfg, err := config.Load(ro.root.configPath)
		if err != nil {
			return err
		}
		addr = cfg.Control.Address
	}
	client, err := control.Dial(addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), rpcTimeout)
	defer cancel()
	return fn(ctx, client)
}

func printStatus(w io.Writer, st control.Status) {
	fmt.Fprintln(w, titleStyle.Render("motion status"))
	state := successStyle.Render("running")
	if st.Paused {
		state = warningStyle.Render("paused")
	}
	fmt.Fprintln(w, "  "+row("state", state))
	fmt.Fprintln(w, "  "+row("level", st.Level))
	fmt.Fprintln(w, "  "+row("attention owner", orNone(st.AttentionOwner)))
	fmt.Fprintln(w, "  "+row("focus stack", orNone(strings.Join(st.FocusStack, " > "))))
	fmt.Fprintln(w, "  "+row("arbiter load", fmt.Sprintf("%d/%d", st.ArbiterLoad, st.ArbiterLimit)))
	fmt.Fprintln(w, "  "+row("controller load", fmt.Sprintf("%d/%d", st.ControllerLoad, st.Budget.MaxTotalCognitiveLoad)))
	fmt.Fprintln(w, "  "+row("ledger load", st.LedgerLoad))
	fmt.Fprintln(w, "  "+row("active", fmt.Sprintf("%d/%d %s", len(st.Active), st.Budget.MaxConcurrentAnimations, strings.Join(st.Active, " "))))
	fmt.Fprintln(w, "  "+row("queued", orNone(strings.Join(st.Queued, " "))))
	fmt.Fprintln(w, "  "+row("motion priority owner", orNone(st.MotionPriorityOwner)))
}

func orNone(s string) string {
	if s == "" {
		return mutedStyle.Render("none")
	}
	return s
}

// #endregion remote-helpers

// #region remote-commands
func newStatusCmd(root *rootOptions) *cobra.Command {
	ro := &remoteOptions{root: root}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, ro, func(ctx context.Context, c *control.Client) error {
				st, err := c.Status(ctx)
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), st)
				return nil
			})
		},
	}
	addRemoteFlags(cmd, ro)
	return cmd
}

func newPauseCmd(root *rootOptions) *cobra.Command {
	ro := &remoteOptions{root: root}
	cmd := &cobra.Command{
		Use:   "pause",
		Short: "Stop admitting new animations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, ro, func(ctx context.Context, c *control.Client) error {
				if err := c.Pause(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render("motion paused"))
				return nil
			})
		},
	}
	addRemoteFlags(cmd, ro)
	return cmd
}

func newResumeCmd(root *rootOptions) *cobra.Command {
	ro := &remoteOptions{root: root}
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume admissions and drain the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, ro, func(ctx context.Context, c *control.Client) error {
				if err := c.Resume(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("motion resumed"))
				return nil
			})
		},
	}
	addRemoteFlags(cmd, ro)
	return cmd
}

func newBudgetCmd(root *rootOptions) *cobra.Command {
	ro := &remoteOptions{root: root}
	var (
		maxConcurrent int
		maxLoad       int
		frameMs       float64
		gpu           bool
		reducedMotion bool
	)
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Update the motion budget of a running service",
		Long:  "Only the flags given are changed. An invalid result is rejected whole.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var patch motion.BudgetPatch
			flags := cmd.Flags()
			if flags.Changed("max-concurrent") {
				patch.MaxConcurrentAnimations = &maxConcurrent
			}
			if flags.Changed("max-load") {
				patch.MaxTotalCognitiveLoad = &maxLoad
			}
			if flags.Changed("frame-ms") {
				patch.FrameTimeBudgetMs = &frameMs
			}
			if flags.Changed("gpu") {
				patch.GPUAccelerationEnabled = &gpu
			}
			if flags.Changed("respect-reduced-motion") {
				patch.RespectReducedMotionPreference = &reducedMotion
			}
			return withClient(cmd, ro, func(ctx context.Context, c *control.Client) error {
				b, err := c.UpdateBudget(ctx, patch)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, titleStyle.Render("budget in force"))
				fmt.Fprintln(w, "  "+row("max concurrent", b.MaxConcurrentAnimations))
				fmt.Fprintln(w, "  "+row("max cognitive load", b.MaxTotalCognitiveLoad))
				fmt.Fprintln(w, "  "+row("frame budget ms", b.FrameTimeBudgetMs))
				fmt.Fprintln(w, "  "+row("gpu acceleration", b.GPUAccelerationEnabled))
				fmt.Fprintln(w, "  "+row("respect reduced motion", b.RespectReducedMotionPreference))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "maximum concurrent animations (1-5)")
	cmd.Flags().IntVar(&maxLoad, "max-load", 0, "maximum total cognitive load (5-20)")
	cmd.Flags().Float64Var(&frameMs, "frame-ms", 0, "frame time budget in ms (8.33-33.33)")
	cmd.Flags().BoolVar(&gpu, "gpu", true, "GPU acceleration enabled")
	cmd.Flags().BoolVar(&reducedMotion, "respect-reduced-motion", true, "honor the reduced-motion preference")
	addRemoteFlags(cmd, ro)
	return cmd
}

func newAuditCmd(root *rootOptions) *cobra.Command {
	ro := &remoteOptions{root: root}
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check the invariants of a running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, ro, func(ctx context.Context, c *control.Client) error {
				r, err := c.Audit(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%s %s\n", passFail(r.Passed), r.Reason)
				for _, ch := range r.Checks {
					mark := passFail(ch.Pass)
					if !ch.Blocking {
						mark += mutedStyle.Render(" (info)")
					}
					fmt.Fprintf(w, "  %s%s value=%d expected=%d\n", labelStyle.Render(ch.Name), mark, ch.Value, ch.Expected)
				}
				if !r.Passed {
					return fmt.Errorf("audit failed")
				}
				return nil
			})
		},
	}
	addRemoteFlags(cmd, ro)
	return cmd
}

// #endregion remote-commands
