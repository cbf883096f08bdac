// cmd/booknestctl/cmd_sync.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"booknest/internal/platform/di"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Offline write queue",
	Long: `Writes made while the remote store was unreachable are queued locally.

Subcommands:
  pending  - list queued writes, oldest first
  flush    - replay the queue against the remote store`,
	RunE: runSyncPending,
}

var syncPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List queued writes",
	RunE:  runSyncPending,
}

var syncFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Replay queued writes against the remote store",
	RunE:  runSyncFlush,
}

func runSyncPending(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		ops, err := c.Backend.Pending(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, map[string]any{"pending": ops})
		}
		if len(ops) == 0 {
			fmt.Fprintln(out, "Nothing queued.")
			return nil
		}
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d queued writes", len(ops))))
		for _, op := range ops {
			target := op.Collection
			if op.UserID != "" {
				target += "@" + op.UserID
			}
			fmt.Fprintln(out, field(string(op.Op), "%s/%s  attempts=%d  %s", target, op.ID, op.Attempts, queuedAgo(op.QueuedAt)))
		}
		return nil
	})
}

func runSyncFlush(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		out := cmd.OutOrStdout()
		if !c.Backend.HasRemote() {
			if jsonOut {
				return printJSON(out, map[string]any{"flushed": 0, "requeued": 0, "dropped": 0})
			}
			fmt.Fprintln(out, "No remote store configured; nothing to flush.")
			return nil
		}
		rep, err := c.Backend.Flush(ctx)
		if err != nil {
			return fmt.Errorf("flush: %w", err)
		}
		if jsonOut {
			return printJSON(out, rep)
		}
		fmt.Fprintln(out, field("flushed", "%d", rep.Flushed))
		fmt.Fprintln(out, field("requeued", "%d", rep.Requeued))
		fmt.Fprintln(out, field("dropped", "%d", rep.Dropped))
		return nil
	})
}

// queuedAgo renders a stored ISO timestamp as "3 minutes ago"; unparsable values pass through.
func queuedAgo(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}
