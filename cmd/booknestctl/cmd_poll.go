// cmd/booknestctl/cmd_poll.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"booknest/internal/application/notification"
	notifdom "booknest/internal/domain/notification"
	"booknest/internal/platform/di"
)

var (
	pollOnce     bool
	pollInterval time.Duration
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run the admin notification poller",
	Long: `Watches orders and tickets and writes admin notifications, printing each one.

--once does a single catch-up pass: every order and ticket that has no admin
notification yet is reported, then the command exits. Without it the poller
runs until interrupted, reporting only changes seen after it started.`,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().BoolVar(&pollOnce, "once", false, "single catch-up pass")
	pollCmd.Flags().DurationVar(&pollInterval, "interval", notification.DefaultAdminInterval, "scan interval")
}

func runPoll(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		out := cmd.OutOrStdout()
		toast := func(r notifdom.Record) {
			if jsonOut {
				_ = printJSON(out, r)
				return
			}
			fmt.Fprintln(out, noteLine(r))
		}
		p := notification.NewAdminPoller(c.Orders, c.Tickets, c.Notes, notification.AdminPollerOptions{
			Interval: pollInterval,
			Hooks:    notification.Hooks{Toast: toast},
			Logger:   logger,
		})

		if pollOnce {
			p.PrimeEmpty()
			got, err := p.Scan(ctx)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			if !jsonOut {
				fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d new admin notifications", len(got))))
			}
			return nil
		}

		if !jsonOut {
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("Polling every %s (Ctrl-C to stop)", pollInterval)))
		}
		return p.Run(ctx)
	})
}
