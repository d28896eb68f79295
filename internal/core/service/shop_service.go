package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-inventory/internal/core/domain"
	"github.com/rl1809/grocery-inventory/internal/core/store"
	"github.com/rl1809/grocery-inventory/internal/metrics"
	"github.com/rl1809/grocery-inventory/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrEmptyName        = errors.New("name cannot be empty")
)

// ShopService serialises access to one product store and fans committed
// changes out to the stock read model and the movement journal.
type ShopService struct {
	mu   sync.Mutex
	shop *store.Store[domain.Product]

	cache   port.CacheRepository
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// seq orders stock updates. It is advanced under mu.
	seq       uint64
	pubMu     sync.Mutex
	published map[string]uint64

	queueMu sync.RWMutex
	queue   chan domain.Movement
	closed  bool
}

// ItemEdit lists the changes applied by Edit. Nil fields are left alone.
type ItemEdit struct {
	Restock *int64
	Price   *decimal.Decimal
	Name    *string
}

func (e ItemEdit) Empty() bool {
	return e.Restock == nil && e.Price == nil && e.Name == nil
}

// stockUpdate carries per-name totals and the sequence they were read at.
type stockUpdate struct {
	seq    uint64
	totals map[string]uint32
}

type Option func(*ShopService)

func WithLogger(l *zap.Logger) Option {
	return func(s *ShopService) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ShopService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *ShopService) { s.now = now }
}

// NewShopService wraps shop. cache may be nil. A queueSize of zero disables
// the movement journal.
func NewShopService(shop *store.Store[domain.Product], cache port.CacheRepository, queueSize int, opts ...Option) *ShopService {
	s := &ShopService{
		shop:      shop,
		cache:     cache,
		logger:    zap.NewNop(),
		now:       time.Now,
		published: make(map[string]uint64),
	}
	if queueSize > 0 {
		s.queue = make(chan domain.Movement, queueSize)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics.SetShelves(shop.Stats())
	return s
}

func (s *ShopService) AddItem(ctx context.Context, requestID string, item domain.Product, loc domain.Location) error {
	if err := s.guard(ctx, "add", requestID); err != nil {
		return err
	}

	s.mu.Lock()
	err := s.shop.AddItem(item, loc)
	stock := s.stockLocked(err, item.Name())
	s.mu.Unlock()

	s.finish(ctx, "add", err, stock)
	if err != nil {
		return err
	}
	s.record(ctx, domain.Movement{Kind: domain.MovementAdded, ItemID: item.ID().String(), ItemName: item.Name(), Quantity: item.Quantity(), To: &loc})
	return nil
}

func (s *ShopService) RemoveItem(ctx context.Context, requestID string, loc domain.Location) error {
	if err := s.guard(ctx, "remove", requestID); err != nil {
		return err
	}

	s.mu.Lock()
	item, had := s.shop.GetItem(loc)
	err := s.shop.RemoveItem(loc)
	var stock stockUpdate
	if had {
		stock = s.stockLocked(err, item.Name())
	}
	s.mu.Unlock()

	s.finish(ctx, "remove", err, stock)
	if err != nil || !had {
		return err
	}
	s.record(ctx, domain.Movement{Kind: domain.MovementRemoved, ItemID: item.ID().String(), ItemName: item.Name(), Quantity: item.Quantity(), From: &loc})
	return nil
}

// MoveItem relocates an item. The whole remove/add/rollback sequence runs
// under the service lock.
func (s *ShopService) MoveItem(ctx context.Context, requestID string, from, to domain.Location) error {
	if err := s.guard(ctx, "move", requestID); err != nil {
		return err
	}

	s.mu.Lock()
	item, _ := s.shop.GetItem(from)
	displaced, occupied := s.shop.GetItem(to)
	err := s.shop.MoveItem(from, to)
	stock := s.stockLocked(err, item.Name(), displaced.Name())
	s.mu.Unlock()

	s.finish(ctx, "move", err, stock)
	if err != nil {
		if errors.Is(err, domain.ErrMoveFailed) {
			s.logger.Warn("move rolled back",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
				zap.Error(err))
		}
		return err
	}
	if occupied && from != to {
		s.record(ctx, domain.Movement{Kind: domain.MovementRemoved, ItemID: displaced.ID().String(), ItemName: displaced.Name(), Quantity: displaced.Quantity(), From: &to})
	}
	s.record(ctx, domain.Movement{Kind: domain.MovementMoved, ItemID: item.ID().String(), ItemName: item.Name(), Quantity: item.Quantity(), From: &from, To: &to})
	return nil
}

// Restock adds delta (which may be negative) to the quantity at loc.
func (s *ShopService) Restock(ctx context.Context, requestID string, loc domain.Location, delta int64) (domain.Product, error) {
	return s.edit(ctx, "restock", requestID, loc, func(p domain.Product) (domain.Product, error) {
		return p.Restocked(delta)
	})
}

func (s *ShopService) Reprice(ctx context.Context, requestID string, loc domain.Location, price decimal.Decimal) (domain.Product, error) {
	return s.edit(ctx, "reprice", requestID, loc, func(p domain.Product) (domain.Product, error) {
		return p.Repriced(price)
	})
}

func (s *ShopService) Rename(ctx context.Context, requestID string, loc domain.Location, name string) (domain.Product, error) {
	if name == "" {
		return domain.Product{}, ErrEmptyName
	}
	return s.edit(ctx, "rename", requestID, loc, func(p domain.Product) (domain.Product, error) {
		return p.Renamed(name), nil
	})
}

// Edit applies every set field of e to the item at loc in one step, in the
// order restock, price, name. If any change is rejected none is applied.
func (s *ShopService) Edit(ctx context.Context, requestID string, loc domain.Location, e ItemEdit) (domain.Product, error) {
	if e.Name != nil && *e.Name == "" {
		return domain.Product{}, ErrEmptyName
	}
	return s.edit(ctx, "edit", requestID, loc, func(p domain.Product) (domain.Product, error) {
		var err error
		if e.Restock != nil {
			if p, err = p.Restocked(*e.Restock); err != nil {
				return p, err
			}
		}
		if e.Price != nil {
			if p, err = p.Repriced(*e.Price); err != nil {
				return p, err
			}
		}
		if e.Name != nil {
			p = p.Renamed(*e.Name)
		}
		return p, nil
	})
}

func (s *ShopService) edit(ctx context.Context, op, requestID string, loc domain.Location, fn func(domain.Product) (domain.Product, error)) (domain.Product, error) {
	if err := s.guard(ctx, op, requestID); err != nil {
		return domain.Product{}, err
	}

	s.mu.Lock()
	before, _ := s.shop.GetItem(loc)
	err := s.shop.Update(loc, fn)
	after, _ := s.shop.GetItem(loc)
	stock := s.stockLocked(err, before.Name(), after.Name())
	s.mu.Unlock()

	s.finish(ctx, op, err, stock)
	if err != nil {
		return domain.Product{}, err
	}
	s.record(ctx, domain.Movement{Kind: domain.MovementEdited, ItemID: after.ID().String(), ItemName: after.Name(), Quantity: after.Quantity(), From: &loc, To: &loc})
	return after, nil
}

func (s *ShopService) AddRow(rowID, capacity uint32) error {
	return s.structural("add_row", func() error { return s.shop.AddRow(rowID, capacity) })
}

func (s *ShopService) AddRack(rowID, rackID, capacity uint32) error {
	return s.structural("add_rack", func() error { return s.shop.AddRack(rowID, rackID, capacity) })
}

func (s *ShopService) AddZone(rowID, rackID, zoneID uint32) error {
	return s.structural("add_zone", func() error { return s.shop.AddZone(rowID, rackID, zoneID) })
}

func (s *ShopService) structural(op string, fn func() error) error {
	s.mu.Lock()
	err := fn()
	st := s.shop.Stats()
	s.mu.Unlock()

	s.metrics.Observe(op, err)
	s.metrics.SetShelves(st)
	return err
}

func (s *ShopService) GetItem(loc domain.Location) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shop.GetItem(loc)
}

// LocateItem finds item by a full scan of the shelves.
func (s *ShopService) LocateItem(item domain.Product) (domain.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shop.LocationOf(item)
}

// ItemsByName returns every placement holding an item called name, in index
// order.
func (s *ShopService) ItemsByName(name string) ([]domain.Placement[domain.Product], error) {
	s.mu.Lock()
	locs := s.shop.LocationsByName(name)
	items, err := s.shop.ItemsByName(name)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("name index inconsistent", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	out := make([]domain.Placement[domain.Product], len(items))
	for i := range items {
		out[i] = domain.Placement[domain.Product]{Location: locs[i], Item: items[i]}
	}
	return out, nil
}

func (s *ShopService) Placements() []domain.Placement[domain.Product] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shop.Placements()
}

func (s *ShopService) Layout() store.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shop.Layout()
}

func (s *ShopService) Stats() store.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shop.Stats()
}

// Restore places previously saved items back on the shelves. Placements
// whose location no longer exists are skipped and reported.
func (s *ShopService) Restore(ctx context.Context, placements []domain.Placement[domain.Product]) (skipped int) {
	s.mu.Lock()
	for _, p := range placements {
		if addErr := s.shop.AddItem(p.Item, p.Location); addErr != nil {
			s.logger.Warn("snapshot placement skipped", zap.Stringer("location", p.Location), zap.Error(addErr))
			skipped++
		}
	}
	stock := s.totalsLocked(s.shop.Names()...)
	st := s.shop.Stats()
	s.mu.Unlock()

	s.metrics.SetShelves(st)
	s.publish(ctx, stock)
	return skipped
}

func (s *ShopService) GetJournalQueue() <-chan domain.Movement {
	return s.queue
}

// Close stops accepting journal entries and closes the queue so workers
// drain and exit.
func (s *ShopService) Close() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if s.closed || s.queue == nil {
		s.closed = true
		return
	}
	s.closed = true
	close(s.queue)
}

func (s *ShopService) guard(ctx context.Context, op, requestID string) error {
	if s.cache == nil || requestID == "" {
		return nil
	}
	ok, err := s.cache.SetIdempotency(ctx, fmt.Sprintf("shop:%s:%s", op, requestID))
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		s.metrics.Observe(op, ErrDuplicateRequest)
		return ErrDuplicateRequest
	}
	return nil
}

// stockLocked computes totals for names when err is nil. Callers hold mu.
func (s *ShopService) stockLocked(err error, names ...string) stockUpdate {
	if err != nil {
		return stockUpdate{}
	}
	return s.totalsLocked(names...)
}

// totalsLocked sums quantities per name, saturating at math.MaxUint32.
func (s *ShopService) totalsLocked(names ...string) stockUpdate {
	s.seq++
	u := stockUpdate{seq: s.seq, totals: make(map[string]uint32, len(names))}
	for _, name := range names {
		if name == "" {
			continue
		}
		items, err := s.shop.ItemsByName(name)
		if err != nil {
			s.logger.Error("name index inconsistent", zap.String("name", name), zap.Error(err))
			continue
		}
		var sum uint64
		for _, it := range items {
			sum += uint64(it.Quantity())
		}
		if sum > math.MaxUint32 {
			sum = math.MaxUint32
		}
		u.totals[name] = uint32(sum)
	}
	return u
}

func (s *ShopService) finish(ctx context.Context, op string, err error, stock stockUpdate) {
	s.metrics.Observe(op, err)
	if err != nil {
		s.logger.Debug("shelf operation failed", zap.String("op", op), zap.Error(err))
		return
	}
	s.metrics.SetShelves(s.Stats())
	s.publish(ctx, stock)
}

// publish writes u to the cache unless a later update for the same name has
// already been written. Writes are serialised so they land in seq order.
func (s *ShopService) publish(ctx context.Context, u stockUpdate) {
	if s.cache == nil || len(u.totals) == 0 {
		return
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	fresh := make(map[string]uint32, len(u.totals))
	for name, total := range u.totals {
		if s.published[name] > u.seq {
			continue
		}
		fresh[name] = total
	}
	if len(fresh) == 0 {
		s.logger.Debug("stale stock update dropped", zap.Uint64("seq", u.seq))
		return
	}

	if err := s.cache.SetStock(ctx, fresh); err != nil {
		s.logger.Warn("stock publish failed", zap.Int("names", len(fresh)), zap.Error(err))
		return
	}
	for name := range fresh {
		s.published[name] = u.seq
	}
}

func (s *ShopService) record(ctx context.Context, m domain.Movement) {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()
	if s.queue == nil || s.closed {
		return
	}
	m.ID = uuid.NewString()
	m.CreatedAt = s.now()
	select {
	case s.queue <- m:
	case <-ctx.Done():
		s.metrics.JournalFailed()
		s.logger.Warn("movement not journaled", zap.String("movement", m.ID), zap.Error(ctx.Err()))
	}
}
