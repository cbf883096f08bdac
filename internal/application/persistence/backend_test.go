package persistence_test

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"booknest/internal/adapters/out/memory"
	"booknest/internal/application/persistence"
	"booknest/internal/infra/localstore"
)

type fixture struct {
	local   *localstore.MemoryStore
	remote  *memory.RemoteStore
	backend *persistence.Backend
}

func newFixture(t *testing.T, withRemote bool, policy persistence.FlushPolicy) fixture {
	t.Helper()
	f := fixture{local: localstore.NewMemoryStore(0)}
	opts := persistence.Options{
		Local:       f.local,
		Logger:      zaptest.NewLogger(t),
		FlushPolicy: policy,
	}
	if withRemote {
		f.remote = memory.NewRemoteStore()
		opts.Remote = f.remote
	}
	b, err := persistence.New(opts)
	require.NoError(t, err)
	f.backend = b
	return f
}

func ids(docs []persistence.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID())
	}
	sort.Strings(out)
	return out
}

func TestSaveThenLoadReturnsLatestDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, persistence.FlushPolicy{})

	var want []string
	for _, title := range []string{"Dune", "Emma", "Ulysses"} {
		res, err := f.backend.Save(ctx, "books", persistence.Document{"title": title}, "")
		require.NoError(t, err)
		assert.Equal(t, persistence.SourceRemote, res.Source)
		assert.False(t, res.Offline)
		want = append(want, res.ID)
	}
	_, err := f.backend.Save(ctx, "books", persistence.Document{"title": "Emma (2nd ed.)"}, want[1])
	require.NoError(t, err)
	sort.Strings(want)

	got, err := f.backend.Load(ctx, "books")
	require.NoError(t, err)
	assert.Equal(t, persistence.SourceRemote, got.Source)
	assert.Equal(t, want, ids(got.Documents))

	// the local cache mirrors the remote under the historical key
	raw, ok, err := f.local.GetItem(ctx, "booksData")
	require.NoError(t, err)
	require.True(t, ok)
	cached, valid := persistence.DecodeDocuments(raw)
	require.True(t, valid)
	assert.Equal(t, want, ids(cached))
}

func TestRemoteFailureFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, persistence.FlushPolicy{})
	f.remote.SetFailing(true)

	res, err := f.backend.Save(ctx, "orders", persistence.Document{"total": 12}, "")
	require.NoError(t, err)
	assert.Equal(t, persistence.SourceLocal, res.Source)
	assert.True(t, res.Offline)
	assert.True(t, res.Queued)
	assert.NotEmpty(t, res.ID)

	got, err := f.backend.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, persistence.SourceLocal, got.Source)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, res.ID, got.Documents[0].ID())

	pending, err := f.backend.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, persistence.OpSave, pending[0].Op)
	assert.Equal(t, "orders", pending[0].Collection)
}

func TestReconnectFlushesQueuedWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, persistence.FlushPolicy{})

	require.NoError(t, f.backend.SetOnline(ctx, false))
	saved, err := f.backend.Save(ctx, "orders", persistence.Document{"status": "pending"}, "")
	require.NoError(t, err)
	require.True(t, saved.Queued)
	_, err = f.backend.Update(ctx, "orders", saved.ID, persistence.Document{"status": "confirmed"})
	require.NoError(t, err)
	assert.Zero(t, f.remote.Calls(), "offline writes must not reach the remote")

	require.NoError(t, f.backend.SetOnline(ctx, true))

	n, err := f.backend.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	docs, err := f.remote.List(ctx, persistence.CollectionPath{Collection: "orders"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, saved.ID, docs[0].ID())
	assert.Equal(t, "confirmed", docs[0].String("status"))
}

func TestFlushRequeuePolicyKeepsOrderUntilMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, persistence.FlushPolicy{Mode: persistence.FlushRequeue, MaxAttempts: 2})
	f.remote.SetFailing(true)

	a, err := f.backend.Save(ctx, "orders", persistence.Document{"n": 1}, "")
	require.NoError(t, err)
	b, err := f.backend.Save(ctx, "orders", persistence.Document{"n": 2}, "")
	require.NoError(t, err)

	rep, err := f.backend.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, persistence.FlushReport{Requeued: 2}, rep)

	pending, err := f.backend.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[1].ID)
	assert.Equal(t, 1, pending[0].Attempts)

	rep, err = f.backend.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, persistence.FlushReport{Dropped: 2}, rep)

	n, err := f.backend.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFlushRequeueHoldsLaterWritesToTheSameDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, persistence.FlushPolicy{Mode: persistence.FlushRequeue, MaxAttempts: 5})

	_, err := f.backend.Save(ctx, "orders", persistence.Document{"status": "pending"}, "o1")
	require.NoError(t, err)
	_, err = f.backend.Save(ctx, "orders", persistence.Document{"status": "pending"}, "o2")
	require.NoError(t, err)

	f.remote.SetFailing(true)
	_, err = f.backend.Update(ctx, "orders", "o1", persistence.Document{"status": "confirmed"})
	require.NoError(t, err)
	_, err = f.backend.Update(ctx, "orders", "o2", persistence.Document{"status": "cancelled"})
	require.NoError(t, err)
	_, err = f.backend.Update(ctx, "orders", "o1", persistence.Document{"status": "shipped"})
	require.NoError(t, err)
	f.remote.SetFailing(false)

	// only the first replay fails; o1's later write must not overtake it
	f.remote.FailNext(1)
	rep, err := f.backend.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, persistence.FlushReport{Flushed: 1, Requeued: 2}, rep)

	pending, err := f.backend.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "confirmed", pending[0].Document["status"])
	assert.Equal(t, "shipped", pending[1].Document["status"])

	rep, err = f.backend.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, persistence.FlushReport{Flushed: 2}, rep)

	remote, err := f.remote.List(ctx, persistence.CollectionPath{Collection: "orders"})
	require.NoError(t, err)
	status := map[string]any{}
	for _, d := range remote {
		status[d.ID()] = d["status"]
	}
	assert.Equal(t, map[string]any{"o1": "shipped", "o2": "cancelled"}, status)
}

func TestSaveOntoExistingIDMergesOnBothSides(t *testing.T) {
	ctx := context.Background()
	for _, withRemote := range []bool{false, true} {
		f := newFixture(t, withRemote, persistence.FlushPolicy{})

		_, err := f.backend.Save(ctx, "orders", persistence.Document{"title": "Dune", "status": "pending"}, "o1")
		require.NoError(t, err)
		_, err = f.backend.Save(ctx, "orders", persistence.Document{"status": "paid"}, "o1")
		require.NoError(t, err)

		p, err := f.backend.Path(ctx, "orders")
		require.NoError(t, err)
		local, err := f.backend.ReadKey(ctx, f.backend.LocalKey(p))
		require.NoError(t, err)
		require.Len(t, local, 1)
		assert.Equal(t, "Dune", local[0].String("title"), "remote=%v", withRemote)
		assert.Equal(t, "paid", local[0].String("status"), "remote=%v", withRemote)

		if withRemote {
			remote, err := f.remote.List(ctx, p)
			require.NoError(t, err)
			require.Len(t, remote, 1)
			assert.Equal(t, "Dune", remote[0].String("title"))
			assert.Equal(t, "paid", remote[0].String("status"))
		}
	}
}

func TestFlushDropPolicyDiscardsFailedItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, persistence.FlushPolicy{Mode: persistence.FlushDrop})
	f.remote.SetFailing(true)

	_, err := f.backend.Save(ctx, "tickets", persistence.Document{"subject": "late"}, "")
	require.NoError(t, err)

	rep, err := f.backend.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, persistence.FlushReport{Dropped: 1}, rep)

	n, err := f.backend.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUserScopedCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, persistence.FlushPolicy{})

	alice := persistence.WithUserID(ctx, "alice")
	bob := persistence.WithUserID(ctx, "bob")

	_, err := f.backend.Save(alice, "cart", persistence.Document{"items": []any{"a"}}, "current")
	require.NoError(t, err)
	_, err = f.backend.Save(bob, "cart", persistence.Document{"items": []any{"b"}}, "current")
	require.NoError(t, err)

	got, err := f.backend.Load(alice, "cart")
	require.NoError(t, err)
	require.Len(t, got.Documents, 1)
	if diff := cmp.Diff([]any{"a"}, got.Documents[0]["items"]); diff != "" {
		t.Fatalf("alice cart mismatch (-want +got):\n%s", diff)
	}

	_, ok, err := f.local.GetItem(ctx, persistence.ScopedKey("cart", "bob"))
	require.NoError(t, err)
	assert.True(t, ok)

	docs, err := f.remote.List(ctx, persistence.CollectionPath{Collection: "cart", UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestGuestIDIsStable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, persistence.FlushPolicy{})

	first, err := f.backend.ActingUserID(ctx)
	require.NoError(t, err)
	second, err := f.backend.ActingUserID(ctx)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first, "guest_"), first)
	assert.True(t, persistence.IsGuestID(first), first)
	assert.Equal(t, first, second)

	p, err := f.backend.Path(ctx, "pile")
	require.NoError(t, err)
	assert.Equal(t, first, p.UserID)
	assert.Equal(t, "pile@"+first, f.backend.LocalKey(p))
}

func TestLocalOnlyModeAssignsClientIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, persistence.FlushPolicy{})

	res, err := f.backend.Save(ctx, "orders", persistence.Document{"total": 5}, "")
	require.NoError(t, err)
	assert.Equal(t, persistence.SourceLocal, res.Source)
	assert.False(t, res.Queued)
	assert.Len(t, res.ID, 13+9)

	res2, err := f.backend.Update(ctx, "orders", res.ID, persistence.Document{"total": 15})
	require.NoError(t, err)
	assert.Equal(t, persistence.SourceLocal, res2.Source)

	got, err := f.backend.Load(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "15", got.Documents[0].String("total"))

	_, err = f.backend.Delete(ctx, "orders", res.ID)
	require.NoError(t, err)
	got, err = f.backend.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Empty(t, got.Documents)
}

func TestMalformedLocalCollectionLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, persistence.FlushPolicy{})
	require.NoError(t, f.local.SetItem(ctx, "orders", "{not json"))

	got, err := f.backend.Load(ctx, "orders")
	require.NoError(t, err)
	assert.Empty(t, got.Documents)
}

func TestNumericAndStringIDsCompareEqual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, persistence.FlushPolicy{})
	require.NoError(t, f.local.SetItem(ctx, "orders", `[{"id":1700000000000,"status":"pending"}]`))

	_, err := f.backend.Update(ctx, "orders", "1700000000000", persistence.Document{"status": "shipped"})
	require.NoError(t, err)

	got, err := f.backend.Load(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, got.Documents, 1)
	assert.Equal(t, "shipped", got.Documents[0].String("status"))
}

func TestLocalQuotaSurfacesStorageFull(t *testing.T) {
	ctx := context.Background()
	local := localstore.NewMemoryStore(64)
	b, err := persistence.New(persistence.Options{Local: local})
	require.NoError(t, err)

	_, err = b.Save(ctx, "orders", persistence.Document{"note": strings.Repeat("x", 128)}, "")
	require.ErrorIs(t, err, persistence.ErrStorageFull)
}

func TestLoadOverlaysWritesStillQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, persistence.FlushPolicy{MaxAttempts: 10})

	_, err := f.backend.Save(ctx, "tickets", persistence.Document{"subject": "remote"}, "t1")
	require.NoError(t, err)

	f.remote.SetFailing(true)
	_, err = f.backend.Save(ctx, "tickets", persistence.Document{"subject": "offline"}, "t2")
	require.NoError(t, err)
	f.remote.SetFailing(false)

	got, err := f.backend.Load(ctx, "tickets")
	require.NoError(t, err)
	assert.Equal(t, persistence.SourceRemote, got.Source)
	assert.Equal(t, []string{"t1", "t2"}, ids(got.Documents))
}

func TestConnectivityMonitorProbeDrivesOnlineState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true, persistence.FlushPolicy{})
	m := persistence.NewConnectivityMonitor(f.backend, time.Second, zaptest.NewLogger(t))

	f.remote.SetFailing(true)
	assert.False(t, m.Probe(ctx))
	assert.False(t, f.backend.Online())

	res, err := f.backend.Save(ctx, "orders", persistence.Document{"total": 1}, "")
	require.NoError(t, err)
	assert.True(t, res.Queued)

	f.remote.SetFailing(false)
	assert.True(t, m.Probe(ctx))
	assert.True(t, f.backend.Online())

	n, err := f.backend.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMigrateLegacyKeys(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false, persistence.FlushPolicy{})
	require.NoError(t, f.local.SetItem(ctx, "customerServiceTickets", `[{"id":"1"}]`))

	require.NoError(t, f.backend.MigrateLegacyKeys(ctx))

	v, ok, err := f.local.GetItem(ctx, "tickets")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, v)
	_, ok, err = f.local.GetItem(ctx, "customerServiceTickets")
	require.NoError(t, err)
	assert.False(t, ok)
}
