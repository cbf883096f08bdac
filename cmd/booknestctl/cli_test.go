package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"booknest/internal/application/notification"
	"booknest/internal/domain/common"
	notifdom "booknest/internal/domain/notification"
	orderdom "booknest/internal/domain/order"
	appcfg "booknest/internal/infra/config"
	"booknest/internal/platform/di"
)

// useContainer points every command at one in-memory container.
func useContainer(t *testing.T) *di.Container {
	t.Helper()
	logger = zap.NewNop()
	cfg := &appcfg.Config{
		Port:          "0",
		Remote:        appcfg.RemoteNone,
		Local:         appcfg.LocalMemory,
		UploadDir:     t.TempDir(),
		SessionTTL:    time.Hour,
		AdminEmail:    "owner@gmail.com",
		AdminName:     "Owner",
		AdminPassword: "Sh3lf&Stack!",
		StoreName:     "BookNest",
	}
	c, err := di.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	prev := openContainer
	openContainer = func(context.Context) (*di.Container, func(), error) {
		return c, func() {}, nil
	}
	t.Cleanup(func() {
		openContainer = prev
		jsonOut = false
		notifyUser, notifyUnread, notifyLimit = "", false, 20
		pollOnce = false
	})
	return c
}

func run(t *testing.T, fn func(*cobra.Command, []string) error) string {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())
	require.NoError(t, fn(cmd, nil))
	return buf.String()
}

func TestStorageStatusJSON(t *testing.T) {
	useContainer(t)
	jsonOut = true

	var got struct {
		Backend struct {
			Type    string `json:"type"`
			Pending int    `json:"pending"`
		} `json:"backend"`
		Quota struct {
			Level string `json:"status"`
			Size  int64  `json:"size"`
		} `json:"quota"`
	}
	require.NoError(t, json.Unmarshal([]byte(run(t, runStorageStatus)), &got))
	assert.Equal(t, "local", got.Backend.Type)
	assert.Zero(t, got.Backend.Pending)
	assert.Equal(t, "ok", got.Quota.Level)
	assert.Positive(t, got.Quota.Size, "the bootstrapped admin is stored locally")
}

func TestStorageStatusText(t *testing.T) {
	useContainer(t)
	out := run(t, runStorageStatus)
	assert.Contains(t, out, "BookNest storage")
	assert.Contains(t, out, "local (")
	assert.Contains(t, out, "% ok")
}

func TestStorageSweepAndRepairRun(t *testing.T) {
	useContainer(t)
	assert.Contains(t, run(t, runStorageSweep), "freed")
	run(t, runStorageRepairCart)
}

func TestSyncWithoutRemote(t *testing.T) {
	useContainer(t)
	assert.Contains(t, run(t, runSyncFlush), "No remote store configured")
	assert.Contains(t, run(t, runSyncPending), "Nothing queued.")
}

func TestPollOnceThenListNotifications(t *testing.T) {
	c := useContainer(t)
	ctx := context.Background()
	_, err := c.Orders.Create(ctx, orderdom.Order{
		ID:            common.ID("4242"),
		UserID:        "u1",
		Total:         300,
		Status:        orderdom.StatusPending,
		PaymentStatus: orderdom.PaymentUnpaid,
		OrderDate:     common.At(time.Now()),
	})
	require.NoError(t, err)

	pollOnce = true
	out := run(t, runPoll)
	assert.Contains(t, out, "New Order Received")
	assert.Contains(t, out, "1 new admin notifications")

	// the second pass finds nothing new
	assert.Contains(t, run(t, runPoll), "0 new admin notifications")

	out = run(t, runNotificationsList)
	assert.Contains(t, out, "Admin notifications (1 unread)")
	assert.Contains(t, out, "New Order Received")

	recs, err := c.Notes.Records(ctx, notification.AdminList, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NoError(t, c.Notes.MarkRead(ctx, notification.AdminList, "", recs[0].ID.String()))

	notifyUnread = true
	out = run(t, runNotificationsList)
	assert.Contains(t, out, "(0 unread)")
	assert.Contains(t, out, "No notifications.")
}

func TestNotificationsListForUser(t *testing.T) {
	c := useContainer(t)
	ctx := context.Background()
	_, err := c.Notes.Add(ctx, notification.UserList, userNote("u7", "Order Shipped"))
	require.NoError(t, err)
	_, err = c.Notes.Add(ctx, notification.UserList, userNote("u8", "Someone else"))
	require.NoError(t, err)

	notifyUser = "u7"
	out := run(t, runNotificationsList)
	assert.Contains(t, out, "Notifications for u7 (1 unread)")
	assert.Contains(t, out, "Order Shipped")
	assert.NotContains(t, out, "Someone else")
}

func userNote(uid, title string) notifdom.Record {
	return notifdom.Record{UserID: uid, Title: title, Message: title, Type: notifdom.TypeOrder, RelatedID: common.ID("1")}
}
