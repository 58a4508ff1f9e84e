package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/numberpro/internal/inventory"
	"github.com/example/numberpro/internal/jobs"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage scheduled provisioning jobs",
	}
	cmd.AddCommand(newJobCreateCmd())
	cmd.AddCommand(newJobListCmd())
	return cmd
}

func newJobCreateCmd() *cobra.Command {
	var (
		userID        string
		name          string
		systemID      int
		systemType    string
		rangeName     string
		desiredNumber string
		reason        string
		description   string
		expiresOn     string
		maxAttempts   int
		startAt       string
		windowMinutes int
		intervalSec   int
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Schedule a number acquisition inside an attempt window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := inventory.ParseSystemType(systemType); err != nil {
				return err
			}

			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			start := time.Now().UTC()
			if startAt != "" {
				start, err = time.Parse(time.RFC3339, startAt)
				if err != nil {
					return fmt.Errorf("invalid --start-at (want RFC3339): %w", err)
				}
				start = start.UTC()
			}

			j := jobs.Job{
				UserID:        userID,
				Name:          name,
				SystemID:      systemID,
				SystemType:    inventory.SystemType(systemType),
				RangeName:     rangeName,
				DesiredNumber: desiredNumber,
				Reason:        reason,
				Description:   description,
				NeverExpires:  expiresOn == "",
				MaxAttempts:   maxAttempts,
				WindowStartAt: start,
				WindowEndAt:   start.Add(time.Duration(windowMinutes) * time.Minute),
				IntervalSec:   intervalSec,
			}
			if expiresOn != "" {
				exp, err := time.Parse("2006-01-02", expiresOn)
				if err != nil {
					return fmt.Errorf("invalid --expires-on (want YYYY-MM-DD)")
				}
				j.ExpiresOn = &exp
			}
			if err := j.Validate(); err != nil {
				return err
			}

			id, err := jobs.NewRepo(d).Create(ctx, j)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created job id=%d window_start_utc=%s window_end_utc=%s\n",
				id, j.WindowStartAt.Format(time.RFC3339), j.WindowEndAt.Format(time.RFC3339))
			return nil
		},
	}

	c.Flags().StringVar(&userID, "user-id", "", "dashboard user id")
	c.Flags().StringVar(&name, "name", "", "job name")
	c.Flags().IntVar(&systemID, "system-id", 0, "target system id")
	c.Flags().StringVar(&systemType, "system-type", "", "target system type (sfb, cisco, avaya)")
	c.Flags().StringVar(&rangeName, "range", "", "range to draw candidates from")
	c.Flags().StringVar(&desiredNumber, "number", "", "specific number to try first")
	c.Flags().StringVar(&reason, "reason", "", "reservation reason")
	c.Flags().StringVar(&description, "description", "", "optional description")
	c.Flags().StringVar(&expiresOn, "expires-on", "", "expiration date YYYY-MM-DD (default: never expires)")
	c.Flags().IntVar(&maxAttempts, "max-attempts", 5, "conflict retry budget (1-20)")
	c.Flags().StringVar(&startAt, "start-at", "", "window start, RFC3339 (default: now)")
	c.Flags().IntVar(&windowMinutes, "window-minutes", 60, "attempt window length")
	c.Flags().IntVar(&intervalSec, "interval-seconds", 30, "retry interval seconds")

	_ = c.MarkFlagRequired("user-id")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("system-id")
	_ = c.MarkFlagRequired("system-type")
	_ = c.MarkFlagRequired("range")
	_ = c.MarkFlagRequired("reason")
	return c
}

func newJobListCmd() *cobra.Command {
	var userID string
	c := &cobra.Command{
		Use:   "list",
		Short: "List provisioning jobs for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, d, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			js, err := jobs.NewRepo(d).ListByUser(ctx, userID)
			if err != nil {
				return err
			}
			for _, j := range js {
				reserved := "-"
				if j.ReservedNumber != nil {
					reserved = *j.ReservedNumber
				}
				fmt.Fprintf(os.Stdout, "id=%d name=%q status=%s range=%q reserved=%s window=%s..%s\n",
					j.ID, j.Name, j.Status, j.RangeName, reserved,
					j.WindowStartAt.Format(time.RFC3339), j.WindowEndAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	c.Flags().StringVar(&userID, "user-id", "", "dashboard user id")
	_ = c.MarkFlagRequired("user-id")
	return c
}
