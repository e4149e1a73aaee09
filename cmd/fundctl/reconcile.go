package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	pkgerrors "github.com/angelmondragon/tamwill-backend/pkg/errors"
)

const defaultSweepLimit = 100

func reconcileCmd(boot bootstrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile [contributionID]",
		Short: "Re-ask the payment provider about pending contributions",
		Long: `Reconcile fetches the provider's charge status for one contribution and
applies it exactly as a checkout return would. With --pending it sweeps every
contribution still pending after --older-than.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sweep, _ := cmd.Flags().GetBool("pending")
			asJSON, _ := cmd.Flags().GetBool("json")

			if sweep == (len(args) == 1) {
				return fmt.Errorf("pass either a contribution id or --pending")
			}

			if !sweep {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid contribution id %q: %w", args[0], err)
				}
				return withApp(cmd, boot, func(ctx context.Context, a *app) error {
					ctx = a.logg.WithContributionID(ctx, id.String())
					res, err := a.reconciler.Reconcile(ctx, id)
					if err != nil {
						return describe(err)
					}
					a.logg.Info(a.logg.WithField(ctx, "outcome", res.Outcome), "contribution reconciled")
					out := map[string]any{
						"contribution_id": id,
						"status":          res.Contribution.Status,
						"charge_status":   res.Status,
						"outcome":         res.Outcome,
					}
					return printResult(cmd, asJSON, out, fmt.Sprintf("%s: %s (charge %s, %s)", id, res.Contribution.Status, res.Status, res.Outcome))
				})
			}

			olderThan, _ := cmd.Flags().GetDuration("older-than")
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, boot, func(ctx context.Context, a *app) error {
				report, err := a.reconciler.ReconcilePending(ctx, time.Now().Add(-olderThan), limit)
				if err != nil {
					return describe(err)
				}
				a.logg.Info(a.logg.WithFields(ctx, map[string]any{
					"checked": report.Checked,
					"applied": report.Applied,
					"failed":  report.Failed,
				}), "pending sweep finished")
				if err := printResult(cmd, asJSON, report, report.String()); err != nil {
					return err
				}
				if report.Failed > 0 {
					return fmt.Errorf("%d contributions failed to reconcile", report.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().Bool("pending", false, "Sweep all pending contributions instead of one id")
	cmd.Flags().Duration("older-than", 15*time.Minute, "Only sweep contributions pending for at least this long")
	cmd.Flags().Int("limit", defaultSweepLimit, "Maximum contributions per sweep")
	return cmd
}

// describe prefixes typed failures with their reason for operators.
func describe(err error) error {
	if typed := pkgerrors.As(err); typed != nil && typed.Reason() != "" {
		return fmt.Errorf("%s: %w", typed.Reason(), err)
	}
	return err
}
