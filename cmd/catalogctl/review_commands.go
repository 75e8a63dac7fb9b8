package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gymdir/internal/reconcile"
)

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var (
		dryRun bool
		slug   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a candidate into the catalog",
		Long: "Plans the gym and equipment changes for a candidate and applies them in one\n" +
			"transaction. With --dry-run the plan is printed and nothing is written.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			req := reconcile.ApproveRequest{DryRun: dryRun}
			if slug != "" {
				req.Override = &reconcile.Override{GymSlug: slug}
			}
			out, err := eng.Commands.Approve(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			prefix := "applied"
			if out.DryRun {
				prefix = "dry run"
			}
			fmt.Fprintf(w, "%s: %s\n", prefix, out.Plan.Summary())
			for _, c := range out.Plan.Gym.Changes {
				fmt.Fprintf(w, "  %s: %q -> %q\n", c.Field, c.Old, c.New)
			}
			for _, msg := range out.Plan.Warnings {
				fmt.Fprintf(w, "warning: %s\n", msg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without writing")
	cmd.Flags().StringVar(&slug, "slug", "", "Attach to the catalog gym with this slug")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a candidate with a reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			c, err := eng.Commands.Reject(cmd.Context(), id, reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "candidate #%d %s (%d reasons)\n", c.ID, c.Status, len(c.Payload.Rejection.Entries))
			return nil
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the candidate is rejected")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Triage the oldest new candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			res, err := eng.Commands.Classify(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "new=%d reviewing=%d duplicate=%d skipped=%d\n",
				len(res.New), len(res.Reviewing), len(res.Duplicate), len(res.Skipped))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum candidates to triage")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
