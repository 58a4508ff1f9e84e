package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/numberpro/internal/inventory"
	"github.com/example/numberpro/internal/provision"
)

func newReserveCmd() *cobra.Command {
	var (
		systemID    int
		systemType  string
		number      string
		rangeName   string
		reason      string
		description string
		neverExpire bool
		expiresOn   string
		maxAttempts int
	)

	c := &cobra.Command{
		Use:   "reserve",
		Short: "Reserve an available number, retrying on conflict",
		Long: `Reserve a number on a system. With --number the reservation starts from
that specific number; otherwise the first available number in --range is
used. When another client wins the race for a candidate, a fresh one is
drawn from the range and the attempt repeats, up to --max-attempts times.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := inventory.ParseSystemType(systemType)
			if err != nil {
				return err
			}

			expiry := inventory.Expiry{}
			if neverExpire {
				expiry = inventory.NeverExpires()
			}
			if expiresOn != "" {
				d, err := time.Parse("2006-01-02", expiresOn)
				if err != nil {
					return fmt.Errorf("invalid --expires-on (want YYYY-MM-DD)")
				}
				expiry.Date = d
			}

			ctx := context.Background()
			_, client, err := connect(ctx)
			if err != nil {
				return err
			}

			initial := inventory.NumberHandle{SystemID: systemID, System: st, Raw: number}
			if number == "" {
				cands, err := client.QueryAvailable(ctx, systemID, st, rangeName, 1)
				if err != nil {
					return err
				}
				if len(cands) == 0 {
					return fmt.Errorf("range %q has no available numbers", rangeName)
				}
				initial = cands[0].Handle
			}

			engine := &provision.Engine{Provider: client}
			res, err := engine.Reserve(ctx, provision.ReserveRequest{
				Initial:     initial,
				RangeName:   rangeName,
				Reason:      reason,
				Description: description,
				Expiry:      expiry,
				MaxAttempts: maxAttempts,
			})
			if err != nil {
				return err
			}

			if canonical, diag := inventory.Normalize(res.Handle.Raw); diag != inventory.DiagNone {
				fmt.Fprintf(os.Stderr, "warning: %s: %s\n", canonical, diag)
			}
			fmt.Fprintf(os.Stdout, "reserved number=%s canonical=%s ref=%s reason=%q expires=%s\n",
				res.Handle.Raw, res.Canonical, res.ResourceRef, res.Reason, res.Expiry)
			return nil
		},
	}

	addSystemFlags(c, &systemID, &systemType)
	c.Flags().StringVar(&number, "number", "", "specific number to reserve (default: first available in --range)")
	c.Flags().StringVar(&rangeName, "range", "", "range to draw candidates from")
	c.Flags().StringVar(&reason, "reason", "", "reservation reason")
	c.Flags().StringVar(&description, "description", "", "optional description")
	c.Flags().BoolVar(&neverExpire, "never-expires", false, "reservation never expires")
	c.Flags().StringVar(&expiresOn, "expires-on", "", "expiration date YYYY-MM-DD")
	c.Flags().IntVar(&maxAttempts, "max-attempts", 5, "conflict retry budget (1-20)")
	_ = c.MarkFlagRequired("range")
	_ = c.MarkFlagRequired("reason")
	return c
}
