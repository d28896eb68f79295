package stress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/grocery-inventory/internal/adapter/handler"
	"github.com/rl1809/grocery-inventory/internal/core/domain"
	"github.com/rl1809/grocery-inventory/internal/core/service"
	"github.com/rl1809/grocery-inventory/internal/core/store"
)

// Target is the part of the shop a stress run drives.
type Target interface {
	AddItem(ctx context.Context, requestID string, item domain.Product, loc domain.Location) error
	MoveItem(ctx context.Context, requestID string, from, to domain.Location) error
}

type Options struct {
	Workers  int
	Moves    int
	FillRate float64
	Seed     uint64
}

func DefaultOptions() Options {
	return Options{Workers: 8, Moves: 200, FillRate: 0.5, Seed: 1}
}

type Result struct {
	Added      int32
	Moved      int32
	Failed     int32
	RolledBack int32
	Duration   time.Duration
}

var names = []string{"Milk", "Bread", "Eggs", "Rice", "Apples", "Cheese"}

// Run stocks part of the layout and then fires concurrent random moves at
// target.
func Run(ctx context.Context, target Target, layout store.Layout, opts Options, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	locs := Locations(layout)
	if len(locs) == 0 {
		return Result{}, errors.New("layout has no zones")
	}

	var res Result
	start := time.Now()

	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	for _, loc := range locs {
		if r.Float64() >= opts.FillRate {
			continue
		}
		item := domain.NewProduct(names[r.IntN(len(names))], r.Uint32N(50)+1, decimal.New(int64(r.IntN(1000)), -2), time.Now().Add(7*24*time.Hour))
		if err := target.AddItem(ctx, uuid.NewString(), item, loc); err != nil {
			return res, fmt.Errorf("stock %s: %w", loc, err)
		}
		res.Added++
	}
	logger.Info("shelves stocked", zap.Int32("items", res.Added), zap.Int("zones", len(locs)))

	var moved, failed, rolledBack atomic.Int32
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(opts.Seed, uint64(worker)))
			for i := 0; i < opts.Moves; i++ {
				if ctx.Err() != nil {
					return
				}
				from := locs[r.IntN(len(locs))]
				to := locs[r.IntN(len(locs))]
				err := target.MoveItem(ctx, uuid.NewString(), from, to)
				switch {
				case err == nil:
					moved.Add(1)
				case errors.Is(err, domain.ErrMoveFailed):
					rolledBack.Add(1)
				default:
					failed.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	res.Moved = moved.Load()
	res.Failed = failed.Load()
	res.RolledBack = rolledBack.Load()
	res.Duration = time.Since(start)
	return res, ctx.Err()
}

// Locations lists every zone of layout.
func Locations(layout store.Layout) []domain.Location {
	var out []domain.Location
	for _, row := range layout.Rows {
		for _, rack := range row.Racks {
			for _, zone := range rack.Zones {
				out = append(out, domain.Location{Row: row.ID, Rack: rack.ID, Zone: zone})
			}
		}
	}
	return out
}

// Verify checks that the name index of svc agrees with its shelves.
func Verify(svc *service.ShopService) error {
	placements := svc.Placements()
	perName := make(map[string]int)
	for _, p := range placements {
		perName[p.Item.Name()]++
	}
	for name, want := range perName {
		got, err := svc.ItemsByName(name)
		if err != nil {
			return err
		}
		if len(got) != want {
			return fmt.Errorf("%q: index lists %d locations, shelves hold %d", name, len(got), want)
		}
	}
	return nil
}

// GRPCTarget drives a remote shop through the gRPC client.
type GRPCTarget struct {
	Client *handler.ShopClient
}

func (g GRPCTarget) AddItem(ctx context.Context, requestID string, item domain.Product, loc domain.Location) error {
	reply, err := g.Client.AddItem(ctx, &handler.AddItemRequest{
		RequestID: requestID,
		Location:  loc,
		Name:      item.Name(),
		Quantity:  item.Quantity(),
		Price:     item.Price(),
		ExpiresAt: item.ExpiresAt,
	})
	return replyErr(reply, err)
}

func (g GRPCTarget) MoveItem(ctx context.Context, requestID string, from, to domain.Location) error {
	reply, err := g.Client.MoveItem(ctx, &handler.MoveItemRequest{RequestID: requestID, From: from, To: to})
	return replyErr(reply, err)
}

func replyErr(reply *handler.ShopReply, err error) error {
	if err != nil {
		return err
	}
	if reply.Success {
		return nil
	}
	if rest, ok := strings.CutPrefix(reply.Message, domain.ErrMoveFailed.Error()); ok {
		return fmt.Errorf("%w%s", domain.ErrMoveFailed, rest)
	}
	return errors.New(reply.Message)
}

// Report prints r in the same shape as the other load tools.
func (r Result) Report(w io.Writer) {
	fmt.Fprintln(w, "========== STRESS TEST RESULTS ==========")
	fmt.Fprintf(w, "Items Stocked:    %d\n", r.Added)
	fmt.Fprintf(w, "Moves Succeeded:  %d\n", r.Moved)
	fmt.Fprintf(w, "Moves Rolled Back: %d\n", r.RolledBack)
	fmt.Fprintf(w, "Moves Rejected:   %d\n", r.Failed)
	fmt.Fprintf(w, "Duration:         %v\n", r.Duration)
	fmt.Fprintln(w, "==========================================")
}
