package membership

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with the same all-or-nothing semantics as the
// Postgres store: writes are staged per transaction and discarded on error.
type memStore struct {
	mu        sync.Mutex
	baseKey   string
	records   map[uint64]Record
	processed map[uint64]map[string]ProcessedOrder
	trans     []TierTransition
}

func newMemStore(baseKey string) *memStore {
	return &memStore{
		baseKey:   baseKey,
		records:   map[uint64]Record{},
		processed: map[uint64]map[string]ProcessedOrder{},
	}
}

func (m *memStore) WithCustomer(_ context.Context, customerID uint64, fn func(Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn := &memTxn{store: m, customerID: customerID}
	if err := fn(txn); err != nil {
		return err
	}
	txn.commit()
	return nil
}

type memTxn struct {
	store      *memStore
	customerID uint64

	rec    *Record
	orders []ProcessedOrder
	trans  []TierTransition
}

func (t *memTxn) Record() (*Record, error) {
	if t.rec != nil {
		return t.rec, nil
	}
	if existing, ok := t.store.records[t.customerID]; ok {
		cp := existing
		t.rec = &cp
		return t.rec, nil
	}
	now := time.Now()
	t.rec = &Record{CustomerID: t.customerID, TierKey: t.store.baseKey, CreatedAt: now, UpdatedAt: now}
	return t.rec, nil
}

func (t *memTxn) OrderProcessed(orderID string) (bool, error) {
	_, ok := t.store.processed[t.customerID][orderID]
	return ok, nil
}

func (t *memTxn) SaveRecord(rec *Record) error {
	t.rec = rec
	return nil
}

func (t *memTxn) AddProcessedOrder(po *ProcessedOrder) error {
	t.orders = append(t.orders, *po)
	return nil
}

func (t *memTxn) AddTierTransition(tt *TierTransition) error {
	t.trans = append(t.trans, *tt)
	return nil
}

func (t *memTxn) commit() {
	if t.rec != nil {
		t.store.records[t.customerID] = *t.rec
	}
	for _, po := range t.orders {
		if t.store.processed[t.customerID] == nil {
			t.store.processed[t.customerID] = map[string]ProcessedOrder{}
		}
		t.store.processed[t.customerID][po.OrderID] = po
	}
	t.store.trans = append(t.store.trans, t.trans...)
}

func newTestLedger(t *testing.T) (*Ledger, *memStore) {
	t.Helper()
	catalog, err := NewCatalog(testTiers())
	require.NoError(t, err)
	store := newMemStore(catalog.TierFor(0).Key)
	return NewLedger(store, catalog), store
}

func TestApplyOrderCreatesBaseRecord(t *testing.T) {
	ledger, store := newTestLedger(t)

	out, err := ledger.ApplyOrder(context.Background(), 7, "ORD-1", 250_000)
	require.NoError(t, err)

	assert.Equal(t, "member", out.PreviousTier.Key)
	assert.Equal(t, "member", out.NewTier.Key)
	assert.Equal(t, int64(250), out.PointsEarned)
	assert.Equal(t, int64(250_000), out.TotalSpent)
	assert.False(t, out.TierUpgraded)
	assert.False(t, out.AlreadyProcessed)

	rec := store.records[7]
	assert.Equal(t, int64(250_000), rec.TotalSpent)
	assert.Equal(t, int64(250), rec.PointsBalance)
	assert.Equal(t, int64(250), rec.PointsEarnedLifetime)
	assert.Equal(t, "member", rec.TierKey)
	assert.Nil(t, rec.LastTierUpdate)
}

func TestApplyOrderIdempotent(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	first, err := ledger.ApplyOrder(ctx, 7, "ORD-1", 250_000)
	require.NoError(t, err)
	require.False(t, first.AlreadyProcessed)

	afterFirst := store.records[7]

	for i := 0; i < 3; i++ {
		again, err := ledger.ApplyOrder(ctx, 7, "ORD-1", 250_000)
		require.NoError(t, err)
		assert.True(t, again.AlreadyProcessed)
		assert.Zero(t, again.PointsEarned)
		assert.Equal(t, first.NewPointsBalance, again.NewPointsBalance)
		assert.Equal(t, first.TotalSpent, again.TotalSpent)
	}

	assert.Equal(t, afterFirst, store.records[7])
}

func TestApplyOrderTierCrossingUsesPostOrderMultiplier(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	// Bring the customer to 900k, still below the silver threshold.
	_, err := ledger.ApplyOrder(ctx, 7, "ORD-1", 900_000)
	require.NoError(t, err)

	// 200k crosses into silver; points use silver's 1.2 multiplier.
	out, err := ledger.ApplyOrder(ctx, 7, "ORD-2", 200_000)
	require.NoError(t, err)

	assert.Equal(t, "member", out.PreviousTier.Key)
	assert.Equal(t, "silver", out.NewTier.Key)
	assert.True(t, out.TierUpgraded)
	assert.Equal(t, int64(240), out.PointsEarned)
	assert.Equal(t, int64(1_100_000), out.TotalSpent)

	rec := store.records[7]
	assert.Equal(t, "silver", rec.TierKey)
	require.NotNil(t, rec.LastTierUpdate)

	require.Len(t, store.trans, 1)
	assert.Equal(t, "member", store.trans[0].FromTier)
	assert.Equal(t, "silver", store.trans[0].ToTier)
	assert.Equal(t, "ORD-2", store.trans[0].OrderID)
}

func TestApplyOrderZeroTotalStillMarksProcessed(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	out, err := ledger.ApplyOrder(ctx, 7, "ORD-0", 0)
	require.NoError(t, err)
	assert.Zero(t, out.PointsEarned)
	assert.Zero(t, out.TotalSpent)
	assert.False(t, out.AlreadyProcessed)

	_, seen := store.processed[7]["ORD-0"]
	assert.True(t, seen)

	again, err := ledger.ApplyOrder(ctx, 7, "ORD-0", 0)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
}

func TestApplyOrderRejectsBadInput(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.ApplyOrder(ctx, 0, "ORD-1", 100)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = ledger.ApplyOrder(ctx, 7, "  ", 100)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = ledger.ApplyOrder(ctx, 7, "ORD-1", -1)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestPointsFor(t *testing.T) {
	cases := []struct {
		total int64
		mult  float64
		want  int64
	}{
		{0, 1, 0},
		{999, 1, 0},
		{1000, 1, 1},
		{200_000, 1.2, 240},
		{150_500, 1.5, 225}, // floor(150) * 1.5 = 225
		{1500, 1.2, 1},      // floor(1 * 1.2)
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PointsFor(tc.total, tc.mult), "total=%d mult=%v", tc.total, tc.mult)
	}
}
