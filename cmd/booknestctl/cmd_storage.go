// cmd/booknestctl/cmd_storage.go
package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"booknest/internal/platform/di"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect and clean the local store",
	Long: `Local store maintenance.

Subcommands:
  status       - backend type, pending writes and local usage
  sweep        - remove expired records and stray cart snapshots
  repair-cart  - rebuild or drop broken cart keys`,
	RunE: runStorageStatus,
}

var storageStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend and local usage",
	RunE:  runStorageStatus,
}

var storageSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired records from the local store",
	RunE:  runStorageSweep,
}

var storageRepairCartCmd = &cobra.Command{
	Use:   "repair-cart",
	Short: "Repair every cart key in the local store",
	RunE:  runStorageRepairCart,
}

func runStorageStatus(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		info, err := c.Backend.StorageInfo(ctx)
		if err != nil {
			return fmt.Errorf("storage info: %w", err)
		}
		st, err := c.Monitor.Check(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, map[string]any{"backend": info, "quota": st})
		}

		fmt.Fprintln(out, titleStyle.Render("BookNest storage"))
		fmt.Fprintln(out, field("backend", "%s (%s)", info.Type, info.Status))
		fmt.Fprintln(out, field("pending", "%s queued writes", humanize.Comma(int64(info.Pending))))
		fmt.Fprintln(out, field("local", "%s of %s  %s",
			humanize.IBytes(uint64(st.Bytes)),
			humanize.IBytes(uint64(st.Capacity)),
			levelStyle(st.Level).Render(fmt.Sprintf("%.1f%% %s", st.Percentage, st.Level)),
		))
		return nil
	})
}

func runStorageSweep(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		before, err := c.Monitor.Check(ctx)
		if err != nil {
			return err
		}
		rep, after, err := c.Monitor.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, map[string]any{"removed": rep.Removed, "before": before, "quota": after})
		}

		fmt.Fprintln(out, titleStyle.Render("Sweep"))
		for _, k := range sortedKeys(rep.Removed) {
			if rep.Removed[k] == 0 {
				continue
			}
			fmt.Fprintln(out, field(k, "%d removed", rep.Removed[k]))
		}
		freed := before.Bytes - after.Bytes
		if freed < 0 {
			freed = 0
		}
		fmt.Fprintln(out, field("total", "%d records, %s freed", rep.Total(), humanize.IBytes(uint64(freed))))
		fmt.Fprintln(out, field("local", "%s", levelStyle(after.Level).Render(fmt.Sprintf("%.1f%% %s", after.Percentage, after.Level))))
		return nil
	})
}

func runStorageRepairCart(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		res, err := c.Monitor.RepairCart(ctx)
		if err != nil {
			return fmt.Errorf("repair cart: %w", err)
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, map[string]any{"carts": res})
		}
		if len(res) == 0 {
			fmt.Fprintln(out, "No cart keys found.")
			return nil
		}
		fmt.Fprintln(out, titleStyle.Render("Cart repair"))
		for _, k := range sortedKeys(res) {
			fmt.Fprintln(out, field(k, "%s", res[k]))
		}
		return nil
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
