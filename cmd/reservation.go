package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/numberpro/internal/inventory"
)

func newReservationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reservation",
		Short: "Inspect and remove existing reservations",
	}
	cmd.AddCommand(newReservationListCmd())
	cmd.AddCommand(newReservationDeleteCmd())
	return cmd
}

func newReservationListCmd() *cobra.Command {
	var systemID int
	var systemType string

	c := &cobra.Command{
		Use:   "list",
		Short: "List reservations on a system",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := inventory.ParseSystemType(systemType)
			if err != nil {
				return err
			}
			ctx := context.Background()
			_, client, err := connect(ctx)
			if err != nil {
				return err
			}
			rs, err := client.ListReservations(ctx, systemID, st)
			if err != nil {
				return err
			}
			for _, r := range rs {
				fmt.Fprintf(os.Stdout, "number=%s canonical=%s ref=%s reason=%q expires=%s\n",
					r.Handle.Raw, r.Canonical, r.ResourceRef, r.Reason, r.Expiry)
			}
			return nil
		},
	}

	addSystemFlags(c, &systemID, &systemType)
	return c
}

func newReservationDeleteCmd() *cobra.Command {
	var systemID int
	var systemType, ref string

	c := &cobra.Command{
		Use:   "delete",
		Short: "Delete a reservation by its resource reference",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := inventory.ParseSystemType(systemType)
			if err != nil {
				return err
			}
			ctx := context.Background()
			_, client, err := connect(ctx)
			if err != nil {
				return err
			}
			if err := client.DeleteReservation(ctx, systemID, st, ref); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "deleted reservation ref=%s\n", ref)
			return nil
		},
	}

	addSystemFlags(c, &systemID, &systemType)
	c.Flags().StringVar(&ref, "ref", "", "reservation resource reference")
	_ = c.MarkFlagRequired("ref")
	return c
}
