package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
	"github.com/rl1809/grocery-inventory/internal/core/store"
	"github.com/rl1809/grocery-inventory/internal/metrics"
)

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	stock          map[string]uint32
	idemErr        error
	stockErr       error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		idempotencySet: make(map[string]bool),
		stock:          make(map[string]uint32),
	}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idemErr != nil {
		return false, m.idemErr
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) SetStock(ctx context.Context, stock map[string]uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stockErr != nil {
		return m.stockErr
	}
	for name, qty := range stock {
		m.stock[name] = qty
	}
	return nil
}

func (m *mockCacheRepo) GetStock(ctx context.Context, name string) (uint32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	qty, ok := m.stock[name]
	return qty, ok, nil
}

// Mock DatabaseRepository
type mockDB struct {
	mu        sync.Mutex
	movements []domain.Movement
	failKind  domain.MovementKind
}

func (m *mockDB) RecordMovement(ctx context.Context, mv domain.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mv.Kind == m.failKind {
		return errors.New("disk full")
	}
	m.movements = append(m.movements, mv)
	return nil
}

func (m *mockDB) ListMovements(ctx context.Context, limit int) ([]domain.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Movement(nil), m.movements...), nil
}

func (m *mockDB) SaveSnapshot(ctx context.Context, placements []domain.Placement[domain.Product]) error {
	return nil
}

func (m *mockDB) LoadSnapshot(ctx context.Context) ([]domain.Placement[domain.Product], error) {
	return nil, nil
}

// blockingCache holds the first SetStock call until release is closed.
type blockingCache struct {
	*mockCacheRepo
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newBlockingCache() *blockingCache {
	return &blockingCache{
		mockCacheRepo: newMockCacheRepo(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
}

func (b *blockingCache) SetStock(ctx context.Context, stock map[string]uint32) error {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.mockCacheRepo.SetStock(ctx, stock)
}

func newTestService(t *testing.T, cache *mockCacheRepo, queueSize int) *ShopService {
	t.Helper()
	shop, err := store.NewGrid[domain.Product](3, 2, 2, 2)
	require.NoError(t, err)

	var svc *ShopService
	if cache == nil {
		svc = NewShopService(shop, nil, queueSize, WithMetrics(metrics.New(prometheus.NewRegistry())))
	} else {
		svc = NewShopService(shop, cache, queueSize, WithMetrics(metrics.New(prometheus.NewRegistry())))
	}
	t.Cleanup(svc.Close)
	return svc
}

func product(name string, qty uint32) domain.Product {
	return domain.NewProduct(name, qty, decimal.RequireFromString("2.5"), time.Now().Add(72*time.Hour))
}

func loc(row, rack, zone uint32) domain.Location {
	return domain.Location{Row: row, Rack: rack, Zone: zone}
}

func drain(svc *ShopService) []domain.Movement {
	var out []domain.Movement
	for {
		select {
		case m := <-svc.GetJournalQueue():
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestAddItem_Success(t *testing.T) {
	cache := newMockCacheRepo()
	svc := newTestService(t, cache, 10)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "req-1", product("Milk", 5), loc(0, 0, 0)))
	require.NoError(t, svc.AddItem(ctx, "req-2", product("Milk", 3), loc(1, 0, 0)))

	qty, ok, _ := cache.GetStock(ctx, "Milk")
	assert.True(t, ok)
	assert.Equal(t, uint32(8), qty)

	moves := drain(svc)
	require.Len(t, moves, 2)
	assert.Equal(t, domain.MovementAdded, moves[0].Kind)
	assert.Equal(t, loc(0, 0, 0), *moves[0].To)
	assert.NotEmpty(t, moves[0].ID)
}

func TestAddItem_DuplicateRequest(t *testing.T) {
	cache := newMockCacheRepo()
	svc := newTestService(t, cache, 10)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "req-1", product("Milk", 5), loc(0, 0, 0)))
	err := svc.AddItem(ctx, "req-1", product("Bread", 1), loc(0, 0, 1))
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	_, ok := svc.GetItem(loc(0, 0, 1))
	assert.False(t, ok)

	// same request id on another operation is a different key
	require.NoError(t, svc.RemoveItem(ctx, "req-1", loc(0, 0, 0)))
}

func TestAddItem_IdempotencyError(t *testing.T) {
	cache := newMockCacheRepo()
	cache.idemErr = errors.New("redis down")
	svc := newTestService(t, cache, 10)

	err := svc.AddItem(context.Background(), "req-1", product("Milk", 5), loc(0, 0, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idempotency check failed")

	// without a request id the cache is not consulted
	require.NoError(t, svc.AddItem(context.Background(), "", product("Milk", 5), loc(0, 0, 0)))
}

func TestAddItem_StockPublishFailureIsNotFatal(t *testing.T) {
	cache := newMockCacheRepo()
	cache.stockErr = errors.New("redis down")
	svc := newTestService(t, cache, 10)

	require.NoError(t, svc.AddItem(context.Background(), "req-1", product("Milk", 5), loc(0, 0, 0)))
	_, ok := svc.GetItem(loc(0, 0, 0))
	assert.True(t, ok)
}

func TestAddItem_UnknownLocation(t *testing.T) {
	svc := newTestService(t, nil, 10)

	err := svc.AddItem(context.Background(), "", product("Milk", 5), loc(9, 0, 0))
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)
	assert.Empty(t, drain(svc))
}

func TestRemoveItem(t *testing.T) {
	cache := newMockCacheRepo()
	svc := newTestService(t, cache, 10)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "", product("Milk", 5), loc(0, 0, 0)))
	require.NoError(t, svc.RemoveItem(ctx, "", loc(0, 0, 0)))
	require.NoError(t, svc.RemoveItem(ctx, "", loc(0, 0, 0)))

	qty, _, _ := cache.GetStock(ctx, "Milk")
	assert.Equal(t, uint32(0), qty)

	moves := drain(svc)
	require.Len(t, moves, 2, "the no-op removal is not journaled")
	assert.Equal(t, domain.MovementRemoved, moves[1].Kind)
}

func TestMoveItem(t *testing.T) {
	cache := newMockCacheRepo()
	svc := newTestService(t, cache, 10)
	ctx := context.Background()
	milk := product("Milk", 5)

	require.NoError(t, svc.AddItem(ctx, "", milk, loc(0, 0, 0)))
	require.NoError(t, svc.AddItem(ctx, "", product("Bread", 2), loc(1, 1, 1)))
	require.NoError(t, svc.MoveItem(ctx, "mv-1", loc(0, 0, 0), loc(1, 1, 1)))

	got, ok := svc.GetItem(loc(1, 1, 1))
	require.True(t, ok)
	assert.True(t, got.Equal(milk))

	bread, _, _ := cache.GetStock(ctx, "Bread")
	assert.Equal(t, uint32(0), bread)

	err := svc.MoveItem(ctx, "mv-1", loc(1, 1, 1), loc(0, 0, 0))
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestMoveItem_OntoOccupiedZoneJournalsDisplaced(t *testing.T) {
	svc := newTestService(t, nil, 10)
	ctx := context.Background()
	from, to := loc(0, 0, 0), loc(2, 1, 1)
	require.NoError(t, svc.AddItem(ctx, "", product("Milk", 2), from))
	bread := product("Bread", 3)
	require.NoError(t, svc.AddItem(ctx, "", bread, to))
	drain(svc)

	require.NoError(t, svc.MoveItem(ctx, "", from, to))

	kinds := map[domain.MovementKind]domain.Movement{}
	for _, m := range drain(svc) {
		kinds[m.Kind] = m
	}
	require.Len(t, kinds, 2)

	removed := kinds[domain.MovementRemoved]
	assert.Equal(t, bread.ID().String(), removed.ItemID)
	assert.Equal(t, "Bread", removed.ItemName)
	assert.Equal(t, uint32(3), removed.Quantity)
	require.NotNil(t, removed.From)
	assert.Equal(t, to, *removed.From)
	assert.Nil(t, removed.To)

	moved := kinds[domain.MovementMoved]
	assert.Equal(t, "Milk", moved.ItemName)

	// moving onto an empty zone journals the move alone
	require.NoError(t, svc.MoveItem(ctx, "", to, from))
	got := drain(svc)
	require.Len(t, got, 1)
	assert.Equal(t, domain.MovementMoved, got[0].Kind)
}

func TestMoveItem_RollbackIsNotJournaled(t *testing.T) {
	svc := newTestService(t, nil, 10)
	ctx := context.Background()
	milk := product("Milk", 5)
	require.NoError(t, svc.AddItem(ctx, "", milk, loc(2, 1, 1)))
	drain(svc)

	err := svc.MoveItem(ctx, "", loc(2, 1, 1), loc(2, 2, 0))
	assert.ErrorIs(t, err, domain.ErrMoveFailed)

	got, ok := svc.GetItem(loc(2, 1, 1))
	require.True(t, ok)
	assert.True(t, got.Equal(milk))
	assert.Empty(t, drain(svc))

	err = svc.MoveItem(ctx, "", loc(0, 0, 0), loc(2, 1, 0))
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestMoveItem_Concurrent(t *testing.T) {
	svc := newTestService(t, nil, 0)
	ctx := context.Background()

	var all []domain.Location
	for _, row := range []uint32{0, 1, 2} {
		for _, rack := range []uint32{0, 1} {
			for _, zone := range []uint32{0, 1} {
				all = append(all, loc(row, rack, zone))
			}
		}
	}
	for i, l := range all[:6] {
		require.NoError(t, svc.AddItem(ctx, "", product(fmt.Sprintf("item-%d", i%3), 1), l))
	}

	var moved atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				from := all[(g+i)%len(all)]
				to := all[(g*7+i*5)%len(all)]
				if to == from {
					continue
				}
				// only move into empty zones so the item count is preserved
				if _, busy := svc.GetItem(to); busy {
					continue
				}
				err := svc.MoveItem(ctx, "", from, to)
				if err == nil {
					moved.Add(1)
				}
			}
		}(g)
	}
	wg.Wait()

	// a move may still land on a zone filled between the check and the
	// call, so the count can only shrink; the index must match regardless
	placements := svc.Placements()
	assert.LessOrEqual(t, len(placements), 6)
	assert.Positive(t, moved.Load())

	seen := 0
	for i := 0; i < 3; i++ {
		items, err := svc.ItemsByName(fmt.Sprintf("item-%d", i))
		require.NoError(t, err)
		seen += len(items)
	}
	assert.Equal(t, len(placements), seen)
}

func TestEdits(t *testing.T) {
	cache := newMockCacheRepo()
	svc := newTestService(t, cache, 10)
	ctx := context.Background()
	at := loc(1, 0, 1)
	require.NoError(t, svc.AddItem(ctx, "", product("Milk", 5), at))

	p, err := svc.Restock(ctx, "", at, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), p.Quantity())

	_, err = svc.Restock(ctx, "", at, -10)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	p, err = svc.Reprice(ctx, "", at, decimal.RequireFromString("3.10"))
	require.NoError(t, err)
	assert.Equal(t, "3.1", p.Price().String())

	_, err = svc.Reprice(ctx, "", at, decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	p, err = svc.Rename(ctx, "", at, "Oat Milk")
	require.NoError(t, err)
	assert.Equal(t, "Oat Milk", p.Name())

	_, err = svc.Rename(ctx, "", at, "")
	assert.ErrorIs(t, err, ErrEmptyName)

	milk, _, _ := cache.GetStock(ctx, "Milk")
	oat, _, _ := cache.GetStock(ctx, "Oat Milk")
	assert.Equal(t, uint32(0), milk)
	assert.Equal(t, uint32(9), oat)

	items, err := svc.ItemsByName("Oat Milk")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, at, items[0].Location)

	_, err = svc.Restock(ctx, "", loc(0, 0, 0), 1)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	kinds := map[domain.MovementKind]int{}
	for _, m := range drain(svc) {
		kinds[m.Kind]++
	}
	assert.Equal(t, map[domain.MovementKind]int{domain.MovementAdded: 1, domain.MovementEdited: 3}, kinds)
}

func TestEdit_AllOrNothing(t *testing.T) {
	cache := newMockCacheRepo()
	svc := newTestService(t, cache, 10)
	ctx := context.Background()
	at := loc(1, 1, 0)
	require.NoError(t, svc.AddItem(ctx, "", product("Milk", 5), at))
	drain(svc)

	restock := int64(2)
	bad := decimal.RequireFromString("-3")
	name := "Oat Milk"
	_, err := svc.Edit(ctx, "", at, ItemEdit{Restock: &restock, Price: &bad, Name: &name})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	empty := ""
	_, err = svc.Edit(ctx, "", at, ItemEdit{Restock: &restock, Name: &empty})
	assert.ErrorIs(t, err, ErrEmptyName)

	item, ok := svc.GetItem(at)
	require.True(t, ok)
	assert.Equal(t, "Milk", item.Name())
	assert.Equal(t, uint32(5), item.Quantity())
	assert.Empty(t, drain(svc))

	price := decimal.RequireFromString("1.99")
	item, err = svc.Edit(ctx, "req-1", at, ItemEdit{Restock: &restock, Price: &price, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Oat Milk", item.Name())
	assert.Equal(t, uint32(7), item.Quantity())
	assert.Equal(t, "1.99", item.Price().String())
	require.Len(t, drain(svc), 1)

	milk, _, _ := cache.GetStock(ctx, "Milk")
	oat, _, _ := cache.GetStock(ctx, "Oat Milk")
	assert.Equal(t, uint32(0), milk)
	assert.Equal(t, uint32(7), oat)

	_, err = svc.Edit(ctx, "req-1", at, ItemEdit{Restock: &restock})
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	assert.True(t, ItemEdit{}.Empty())
}

func TestPublish_ConcurrentOpsLeaveLatestTotal(t *testing.T) {
	cache := newBlockingCache()
	shop, err := store.NewGrid[domain.Product](3, 2, 2, 2)
	require.NoError(t, err)
	svc := NewShopService(shop, cache, 0)
	t.Cleanup(svc.Close)

	ctx := context.Background()
	at := loc(0, 1, 1)
	errs := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.AddItem(ctx, "", product("Milk", 5), at)
	}()

	select {
	case <-cache.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("add never reached the cache")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.RemoveItem(ctx, "", at)
	}()

	// the remove commits on the shelves while the add's total is in flight
	require.Eventually(t, func() bool {
		_, ok := svc.GetItem(at)
		return !ok
	}, 2*time.Second, time.Millisecond)

	close(cache.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	qty, ok, err := cache.GetStock(ctx, "Milk")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(0), qty)
}

func TestPublish_DropsOlderTotals(t *testing.T) {
	cache := newMockCacheRepo()
	svc := newTestService(t, cache, 0)
	ctx := context.Background()

	svc.publish(ctx, stockUpdate{seq: 2, totals: map[string]uint32{"Milk": 0}})
	svc.publish(ctx, stockUpdate{seq: 1, totals: map[string]uint32{"Milk": 5, "Bread": 1}})

	milk, _, _ := cache.GetStock(ctx, "Milk")
	bread, _, _ := cache.GetStock(ctx, "Bread")
	assert.Equal(t, uint32(0), milk)
	assert.Equal(t, uint32(1), bread)

	// a failed write does not advance the name
	cache.stockErr = errors.New("connection refused")
	svc.publish(ctx, stockUpdate{seq: 3, totals: map[string]uint32{"Milk": 9}})
	cache.stockErr = nil
	svc.publish(ctx, stockUpdate{seq: 3, totals: map[string]uint32{"Milk": 7}})

	milk, _, _ = cache.GetStock(ctx, "Milk")
	assert.Equal(t, uint32(7), milk)
}

func TestStock_TotalSaturates(t *testing.T) {
	cache := newMockCacheRepo()
	svc := newTestService(t, cache, 0)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "", product("Rice", math.MaxUint32), loc(0, 0, 0)))
	require.NoError(t, svc.AddItem(ctx, "", product("Rice", math.MaxUint32), loc(1, 0, 0)))

	qty, _, _ := cache.GetStock(ctx, "Rice")
	assert.Equal(t, uint32(math.MaxUint32), qty)

	require.NoError(t, svc.RemoveItem(ctx, "", loc(0, 0, 0)))
	qty, _, _ = cache.GetStock(ctx, "Rice")
	assert.Equal(t, uint32(math.MaxUint32), qty)

	require.NoError(t, svc.AddItem(ctx, "", product("Rice", 1), loc(1, 0, 0)))
	qty, _, _ = cache.GetStock(ctx, "Rice")
	assert.Equal(t, uint32(1), qty)
}

func TestStructuralOperations(t *testing.T) {
	svc := newTestService(t, nil, 0)

	assert.ErrorIs(t, svc.AddZone(0, 0, 2), domain.ErrCapacityExceeded)
	assert.ErrorIs(t, svc.AddRack(0, 2, 2), domain.ErrCapacityExceeded)
	require.NoError(t, svc.AddRow(3, 1))
	require.NoError(t, svc.AddRack(3, 0, 1))
	require.NoError(t, svc.AddZone(3, 0, 0))

	assert.Equal(t, store.Stats{Rows: 4, Racks: 7, Zones: 13}, svc.Stats())
	assert.Len(t, svc.Layout().Rows, 4)
}

func TestLocateItem(t *testing.T) {
	svc := newTestService(t, nil, 0)
	milk := product("Milk", 5)
	require.NoError(t, svc.AddItem(context.Background(), "", milk, loc(2, 0, 1)))

	l, ok := svc.LocateItem(milk)
	require.True(t, ok)
	assert.Equal(t, loc(2, 0, 1), l)

	_, ok = svc.LocateItem(product("Milk", 5))
	assert.False(t, ok)
}

func TestRestore(t *testing.T) {
	cache := newMockCacheRepo()
	svc := newTestService(t, cache, 0)

	skipped := svc.Restore(context.Background(), []domain.Placement[domain.Product]{
		{Location: loc(0, 0, 0), Item: product("Milk", 2)},
		{Location: loc(0, 1, 0), Item: product("Milk", 3)},
		{Location: loc(8, 0, 0), Item: product("Bread", 1)},
	})
	assert.Equal(t, 1, skipped)
	assert.Len(t, svc.Placements(), 2)

	qty, _, _ := cache.GetStock(context.Background(), "Milk")
	assert.Equal(t, uint32(5), qty)
}

func TestJournalWorkers(t *testing.T) {
	shop, err := store.NewGrid[domain.Product](3, 2, 2, 2)
	require.NoError(t, err)
	svc := NewShopService(shop, nil, 100)
	db := &mockDB{failKind: domain.MovementRemoved}
	wg := StartJournal(3, svc.GetJournalQueue(), db, zap.NewNop(), nil)

	ctx := context.Background()
	require.NoError(t, svc.AddItem(ctx, "", product("Milk", 1), loc(0, 0, 0)))
	require.NoError(t, svc.MoveItem(ctx, "", loc(0, 0, 0), loc(0, 1, 0)))
	require.NoError(t, svc.RemoveItem(ctx, "", loc(0, 1, 0)))

	svc.Close()
	wg.Wait()

	moves, _ := db.ListMovements(ctx, 10)
	assert.Len(t, moves, 2)

	// closing twice is harmless and later changes are simply not journaled
	svc.Close()
	require.NoError(t, svc.AddItem(ctx, "", product("Milk", 1), loc(0, 0, 0)))
}

func TestRecord_ContextCancelled(t *testing.T) {
	svc := newTestService(t, nil, 1)
	require.NoError(t, svc.AddItem(context.Background(), "", product("Milk", 1), loc(0, 0, 0)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// queue is full; the change is kept even though it is not journaled
	require.NoError(t, svc.AddItem(ctx, "", product("Bread", 1), loc(0, 0, 1)))
	_, ok := svc.GetItem(loc(0, 0, 1))
	assert.True(t, ok)
	assert.Len(t, drain(svc), 1)
}
