package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func auditCmd(boot bootstrapFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "audit [projectID]",
		Short: "Compare each project's collected total against its payments",
		Long: `Audit recomputes the sum of paid contributions per project and reports
every project whose collected total or payment count disagrees. The command
exits non-zero when any drift is found.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			var scope *uuid.UUID
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid project id %q: %w", args[0], err)
				}
				scope = &id
			}

			return withApp(cmd, boot, func(ctx context.Context, a *app) error {
				report, err := a.auditor.Audit(ctx, scope)
				if err != nil {
					return describe(err)
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(report); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(out, "audited %d projects, %d drifting\n", report.Projects, len(report.Drifts))
					if len(report.Drifts) > 0 {
						tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
						fmt.Fprintln(tw, "PROJECT\tTITLE\tCOLLECTED\tPAID\tDELTA\tMISSING PAYMENTS")
						for _, d := range report.Drifts {
							fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", d.ProjectID, d.Title, d.Collected, d.Paid, d.Delta, d.MissingPayments)
						}
						if err := tw.Flush(); err != nil {
							return err
						}
					}
				}

				if !report.Balanced() {
					a.logg.Warn(a.logg.WithField(ctx, "drifts", len(report.Drifts)), "ledger drift detected")
					return fmt.Errorf("ledger drift in %d projects", len(report.Drifts))
				}
				return nil
			})
		},
	}
}

func printResult(cmd *cobra.Command, asJSON bool, payload any, text string) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	_, err := fmt.Fprintln(out, text)
	return err
}
