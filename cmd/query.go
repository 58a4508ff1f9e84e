package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/numberpro/internal/inventory"
)

func newRangesCmd() *cobra.Command {
	var systemID int
	var systemType string

	c := &cobra.Command{
		Use:   "ranges",
		Short: "List number ranges on a system",
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
			ranges, err := client.Ranges(ctx, systemID, st)
			if err != nil {
				return err
			}
			for _, r := range ranges {
				fmt.Fprintf(os.Stdout, "name=%q first=%s last=%s available=%d\n", r.Name, r.First, r.Last, r.Available)
			}
			return nil
		},
	}

	addSystemFlags(c, &systemID, &systemType)
	return c
}

func newAvailableCmd() *cobra.Command {
	var systemID, count int
	var systemType, rangeName string

	c := &cobra.Command{
		Use:   "available",
		Short: "List available numbers in a range",
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
			cands, err := client.QueryAvailable(ctx, systemID, st, rangeName, count)
			if err != nil {
				return err
			}
			for _, cand := range cands {
				fmt.Fprintf(os.Stdout, "number=%s canonical=%s ref=%s\n", cand.Handle.Raw, cand.Canonical, cand.ResourceRef)
			}
			return nil
		},
	}

	addSystemFlags(c, &systemID, &systemType)
	c.Flags().StringVar(&rangeName, "range", "", "range name")
	c.Flags().IntVar(&count, "count", 10, "number of candidates")
	_ = c.MarkFlagRequired("range")
	return c
}

func addSystemFlags(c *cobra.Command, systemID *int, systemType *string) {
	c.Flags().IntVar(systemID, "system-id", 0, "target system id")
	c.Flags().StringVar(systemType, "system-type", "", "target system type (sfb, cisco, avaya)")
	_ = c.MarkFlagRequired("system-id")
	_ = c.MarkFlagRequired("system-type")
}
