package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booknest/internal/adapters/out/memory"
	"booknest/internal/application/persistence"
	cartdom "booknest/internal/domain/cart"
	"booknest/internal/domain/common"
	orderdom "booknest/internal/domain/order"
	piledom "booknest/internal/domain/pile"
	userdom "booknest/internal/domain/user"
	"booknest/internal/infra/localstore"
)

func newBackend(t *testing.T, remote bool) (*persistence.Backend, *localstore.MemoryStore) {
	t.Helper()
	local := localstore.NewMemoryStore(0)
	opts := persistence.Options{Local: local}
	if remote {
		opts.Remote = memory.NewRemoteStore()
	}
	b, err := persistence.New(opts)
	require.NoError(t, err)
	return b, local
}

func TestCartSaveKeepsSingleCanonicalDocument(t *testing.T) {
	for _, remote := range []bool{false, true} {
		ctx := persistence.WithUserID(context.Background(), "u1")
		b, local := newBackend(t, remote)
		repo := NewCartRepository(b, nil)

		c, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Empty(t, c.Items)

		for i := 0; i < 3; i++ {
			require.NoError(t, c.Add(cartdom.CartItem{BookID: "7", Title: "Emma", Price: 100, Stock: 5}, time.Now()))
			require.NoError(t, repo.Save(ctx, c))
		}

		raw, ok, err := local.GetItem(ctx, persistence.ScopedKey(ColCart, "u1"))
		require.NoError(t, err)
		require.True(t, ok)
		docs, _ := persistence.DecodeDocuments(raw)
		require.Len(t, docs, 1)
		assert.Equal(t, cartdom.CurrentID, docs[0].ID())

		got, err := repo.Get(ctx)
		require.NoError(t, err)
		require.Len(t, got.Items, 1)
		assert.Equal(t, 3, got.Items[0].Quantity)
		assert.Equal(t, 300.0, got.Total())

		require.NoError(t, repo.Clear(ctx))
		got, err = repo.Get(ctx)
		require.NoError(t, err)
		assert.Zero(t, got.Count())
	}
}

func TestOrderRepositoryFiltersByUserAndDecodesNumericIDs(t *testing.T) {
	ctx := context.Background()
	b, local := newBackend(t, false)
	require.NoError(t, local.SetItem(ctx, ColOrders,
		`[{"id":1,"userId":"a","status":"pending","total":5,"date":"2024-01-02T03:04:05.000Z"},
		  {"id":"2","userId":"b","status":"shipped","total":7}]`))
	repo := NewOrderRepository(b)

	mine, err := repo.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, common.ID("1"), mine[0].ID)
	assert.Equal(t, 2024, mine[0].PlacedAt().Year())

	o, err := repo.GetByID(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, orderdom.StatusShipped, o.Status)

	require.NoError(t, repo.UpdateStatus(ctx, "1", orderdom.StatusConfirmed))
	o, err = repo.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, orderdom.StatusConfirmed, o.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, "1", "lost"), orderdom.ErrInvalidStatus)

	_, err = repo.GetByID(ctx, "99")
	assert.ErrorIs(t, err, orderdom.ErrNotFound)
}

func TestOrderCreateAssignsID(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(t, true)
	repo := NewOrderRepository(b)

	o, err := repo.Create(ctx, orderdom.Order{UserID: "a", Status: orderdom.StatusPending, Total: 12})
	require.NoError(t, err)
	assert.False(t, o.ID.IsZero())

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, o.ID, all[0].ID)
}

func TestUserRepositoryEmailLookupIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	b, local := newBackend(t, false)
	repo := NewUserRepository(b)

	_, err := repo.Create(ctx, userdom.User{Email: "Reader@Gmail.com", Name: "Reader", Role: userdom.RoleBuyer})
	require.NoError(t, err)

	u, err := repo.GetByEmail(ctx, "reader@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "Reader", u.Name)

	_, ok, err := local.GetItem(ctx, "booknest_users")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPileDeleteByOrder(t *testing.T) {
	ctx := persistence.WithUserID(context.Background(), "u1")
	b, _ := newBackend(t, false)
	repo := NewPileRepository(b)

	for _, oid := range []string{"o1", "o1", "o2"} {
		_, err := repo.Create(ctx, pileItem("u1", oid))
		require.NoError(t, err)
	}

	n, err := repo.DeleteByOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, common.ID("o2"), left[0].OrderID)
}

func pileItem(uid, orderID string) piledom.Item {
	return piledom.Item{UserID: uid, OrderID: common.ID(orderID), BookID: "1", Title: "Dune", Quantity: 1, Status: piledom.StatusPending}
}
