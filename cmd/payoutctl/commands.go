package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dreamboard/internal/bootstrap"
	"dreamboard/internal/campaigns"
	"dreamboard/internal/infra/credentials"
)

func closeCmd(flags *globalFlags) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "close <dream-board-id>",
		Short: "Close a dream board and create its payouts",
		Long: `Close moves an active or funded dream board to closed and aggregates its
completed contributions into payouts. Running it again on a closed board
only creates payouts that are still missing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *bootstrap.Container) error {
				res, err := c.Campaigns.Close(cmd.Context(), args[0], reason, flags.actor())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, newCloseView(res))
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", campaigns.ReasonManual,
		fmt.Sprintf("Close reason (%s, %s, %s)", campaigns.ReasonManual, campaigns.ReasonDeadline, campaigns.ReasonGoalReached))
	return cmd
}

func payoutsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "Inspect and drive payouts",
	}
	cmd.AddCommand(
		payoutsListCmd(flags),
		payoutsExecuteCmd(flags),
		payoutsConfirmCmd(flags),
		payoutsFailCmd(flags),
		payoutsSweepCmd(flags),
		payoutsRecipientCmd(flags),
		payoutsNoteCmd(flags),
	)
	return cmd
}

func payoutsListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list <dream-board-id>",
		Short: "List the payouts of a dream board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *bootstrap.Container) error {
				list, err := c.Campaigns.Payouts(cmd.Context(), args[0], flags.actor())
				if err != nil {
					return err
				}
				views := make([]payoutView, 0, len(list))
				for _, p := range list {
					views = append(views, newPayoutView(p))
				}
				return render(cmd.OutOrStdout(), flags.output, views)
			})
		},
	}
}

func payoutsExecuteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "execute <payout-id>",
		Short: "Send a payout through its automated channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *bootstrap.Container) error {
				res, err := c.Executor.Execute(cmd.Context(), args[0], flags.actor())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, newExecutionView(res))
			})
		},
	}
}

func payoutsConfirmCmd(flags *globalFlags) *cobra.Command {
	var externalRef string
	cmd := &cobra.Command{
		Use:   "confirm <payout-id>",
		Short: "Record a payout completed outside the platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(externalRef) == "" {
				return errors.New("--external-ref is required")
			}
			return withContainer(cmd, func(c *bootstrap.Container) error {
				res, err := c.Executor.Confirm(cmd.Context(), args[0], externalRef, flags.actor())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, newExecutionView(res))
			})
		},
	}
	cmd.Flags().StringVar(&externalRef, "external-ref", "", "Reference of the transfer, voucher or donation")
	return cmd
}

func payoutsFailCmd(flags *globalFlags) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "fail <payout-id>",
		Short: "Mark a payout failed so it can be retried",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(reason) == "" {
				return errors.New("--reason is required")
			}
			return withContainer(cmd, func(c *bootstrap.Container) error {
				res, err := c.Executor.Fail(cmd.Context(), args[0], reason, flags.actor())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, newExecutionView(res))
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Failure reason recorded on the payout")
	return cmd
}

func payoutsSweepCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Execute pending payouts of every enabled channel once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *bootstrap.Container) error {
				results, err := c.Executor.ExecutePending(cmd.Context(), limit)
				views := make([]executionView, 0, len(results))
				for _, res := range results {
					views = append(views, newExecutionView(res))
				}
				if rerr := render(cmd.OutOrStdout(), flags.output, views); rerr != nil {
					return rerr
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum payouts to claim")
	return cmd
}

func payoutsRecipientCmd(flags *globalFlags) *cobra.Command {
	var set map[string]string
	cmd := &cobra.Command{
		Use:   "recipient <payout-id>",
		Short: "Update the recipient details of a payout",
		Long: `Recipient merges the given fields into the payout's recipient data, for
example a corrected bank account before a failed transfer is retried.`,
		Example: "  payoutctl payouts recipient 3f1c... --set accountNumber=62000000001 --set branchCode=250655",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := recipientFields(set)
			if err != nil {
				return err
			}
			return withContainer(cmd, func(c *bootstrap.Container) error {
				p, err := c.Executor.UpdateRecipientData(cmd.Context(), args[0], data, flags.actor())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, newPayoutView(p))
			})
		},
	}
	cmd.Flags().StringToStringVar(&set, "set", nil, "Recipient field as key=value (repeatable)")
	return cmd
}

// recipientFields turns --set pairs into recipient data.
func recipientFields(set map[string]string) (map[string]any, error) {
	if len(set) == 0 {
		return nil, errors.New("at least one --set key=value is required")
	}
	out := make(map[string]any, len(set))
	for k, v := range set {
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, errors.New("--set key must not be empty")
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func payoutsNoteCmd(flags *globalFlags) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "note <payout-id>",
		Short: "Add an operator note to a payout's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(note) == "" {
				return errors.New("--note is required")
			}
			return withContainer(cmd, func(c *bootstrap.Container) error {
				if err := c.Executor.AddNote(cmd.Context(), args[0], note, flags.actor()); err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, map[string]string{"payout": args[0], "status": "noted"})
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "Note text")
	return cmd
}

func eventsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Partner event delivery",
	}
	var limit int
	flush := &cobra.Command{
		Use:   "flush",
		Short: "Deliver due partner events once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *bootstrap.Container) error {
				stats, err := c.Dispatcher.ProcessDue(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, newFlushView(stats))
			})
		},
	}
	flush.Flags().IntVar(&limit, "limit", 100, "Maximum events to claim")
	cmd.AddCommand(flush)
	return cmd
}

func paymentsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "Contribution payments",
	}
	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Settle stale pending contributions from provider listings once",
		Long: `Reconcile looks up unsettled contributions older than the minimum age in
the Ozow and SnapScan transaction listings and settles the ones the provider
reports as completed with a matching amount, or failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *bootstrap.Container) error {
				res, err := c.Reconciler.Run(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, newReconcileView(res))
			})
		},
	}
	cmd.AddCommand(reconcile)
	return cmd
}

func credentialsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage stored payout channel credentials",
	}
	set := &cobra.Command{
		Use:       "set <provider> <token>",
		Short:     "Store the API token of a payout channel",
		Long:      "Providers: " + strings.Join(credentials.Providers, ", "),
		Args:      cobra.ExactArgs(2),
		ValidArgs: credentials.Providers,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, func(c *bootstrap.Container) error {
				if c.Credentials == nil {
					return errors.New("credentials need DATABASE_URL")
				}
				props := map[string]any{"set_by": flags.operator}
				if err := c.Credentials.SetToken(cmd.Context(), args[0], args[1], props); err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), flags.output, map[string]string{"provider": args[0], "status": "stored"})
			})
		},
	}
	cmd.AddCommand(set)
	return cmd
}
