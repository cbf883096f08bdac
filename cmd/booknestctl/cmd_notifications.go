// cmd/booknestctl/cmd_notifications.go
package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"booknest/internal/application/notification"
	notifdom "booknest/internal/domain/notification"
	"booknest/internal/platform/di"
)

var (
	notifyUser   string
	notifyUnread bool
	notifyLimit  int
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notes"},
	Short:   "Read notification lists",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List admin notifications, or one buyer's with --user",
	Long: `Lists notifications newest first.

Without --user the shared admin list is printed. With --user only that
buyer's records from the user list are shown.`,
	RunE: runNotificationsList,
}

func init() {
	notificationsListCmd.Flags().StringVarP(&notifyUser, "user", "u", "", "buyer id")
	notificationsListCmd.Flags().BoolVar(&notifyUnread, "unread", false, "only unread records")
	notificationsListCmd.Flags().IntVarP(&notifyLimit, "limit", "n", 20, "max records (0 = all)")
}

func runNotificationsList(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		list, uid := notification.AdminList, ""
		if notifyUser != "" {
			list, uid = notification.UserList, notifyUser
		}
		recs, err := c.Notes.Records(ctx, list, uid)
		if err != nil {
			return err
		}
		unread := notification.Unread(recs)
		recs = filterNotes(recs, notifyUnread, notifyLimit)

		out := cmd.OutOrStdout()
		if jsonOut {
			return printJSON(out, map[string]any{"notifications": recs, "unread": unread})
		}
		title := "Admin notifications"
		if uid != "" {
			title = "Notifications for " + uid
		}
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s (%d unread)", title, unread)))
		if len(recs) == 0 {
			fmt.Fprintln(out, "No notifications.")
			return nil
		}
		for _, r := range recs {
			fmt.Fprintln(out, noteLine(r))
		}
		return nil
	})
}

func filterNotes(recs []notifdom.Record, unreadOnly bool, limit int) []notifdom.Record {
	out := make([]notifdom.Record, 0, len(recs))
	for _, r := range recs {
		if unreadOnly && r.Read {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func noteLine(r notifdom.Record) string {
	mark := readMark
	if !r.Read {
		mark = unreadMark
	}
	when := "-"
	if !r.Timestamp.IsZero() {
		when = humanize.Time(r.Timestamp.Time)
	}
	return fmt.Sprintf("%s %s  %s  %s", mark, labelStyle.Render(string(r.Type)), r.Title, labelStyle.Render(when))
}
