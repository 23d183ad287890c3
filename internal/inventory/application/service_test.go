package application_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zerowastemarket/checkout/internal/inventory/application"
	"github.com/zerowastemarket/checkout/internal/inventory/domain"
	"github.com/zerowastemarket/checkout/internal/inventory/infrastructure/memory"
)

func newLedger(t *testing.T, holdFor time.Duration) (*application.Service, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewService(log, repo, holdFor), repo
}

type cancelRecorder struct {
	mu     sync.Mutex
	orders []string
}

func (c *cancelRecorder) Cancel(_ context.Context, orderID, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append(c.orders, orderID)
	return nil
}

func TestReserveMovesAvailableToReserved(t *testing.T) {
	svc, repo := newLedger(t, time.Minute)
	repo.Seed("l-1", 2)
	ctx := context.Background()

	res, err := svc.Reserve(ctx, "l-1", 2, "o-1")
	require.NoError(t, err)
	require.Equal(t, domain.ReservationHeld, res.State)

	stock, err := repo.GetStock(ctx, "l-1")
	require.NoError(t, err)
	require.Equal(t, 0, stock.Available)
	require.Equal(t, 2, stock.Reserved)

	// The last unit is gone; a concurrent checkout loses cleanly.
	_, err = svc.Reserve(ctx, "l-1", 1, "o-2")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestReserveUnknownListing(t *testing.T) {
	svc, _ := newLedger(t, time.Minute)
	_, err := svc.Reserve(context.Background(), "ghost", 1, "o-1")
	require.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	const stock = 10
	const contenders = 25

	svc, repo := newLedger(t, time.Minute)
	repo.Seed("l-1", stock)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Reserve(ctx, "l-1", 1, fmt.Sprintf("o-%d", i))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	s, err := repo.GetStock(ctx, "l-1")
	require.NoError(t, err)
	require.LessOrEqual(t, wins, stock)
	require.Equal(t, wins, s.Reserved)
	require.Equal(t, stock-wins, s.Available)
}

func TestCommitIsIdempotent(t *testing.T) {
	svc, repo := newLedger(t, time.Minute)
	repo.Seed("l-1", 3)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "l-1", 2, "o-1")
	require.NoError(t, err)

	require.NoError(t, svc.Commit(ctx, "o-1", "l-1", 2))
	// Retried commit after a crash mid-reconciliation.
	require.NoError(t, svc.Commit(ctx, "o-1", "l-1", 2))

	s, err := repo.GetStock(ctx, "l-1")
	require.NoError(t, err)
	require.Equal(t, 1, s.Available)
	require.Equal(t, 0, s.Reserved)
}

func TestCommitWithoutReservation(t *testing.T) {
	svc, repo := newLedger(t, time.Minute)
	repo.Seed("l-1", 3)

	err := svc.Commit(context.Background(), "o-1", "l-1", 1)
	require.ErrorIs(t, err, domain.ErrReservationNotFound)
}

func TestReleaseIsIdempotent(t *testing.T) {
	svc, repo := newLedger(t, time.Minute)
	repo.Seed("l-1", 2)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "l-1", 2, "o-1")
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, "o-1", "l-1", 2))
	require.NoError(t, svc.Release(ctx, "o-1", "l-1", 2))
	// Releasing a reservation that never existed is also a no-op.
	require.NoError(t, svc.Release(ctx, "o-9", "l-1", 1))

	s, err := repo.GetStock(ctx, "l-1")
	require.NoError(t, err)
	require.Equal(t, 2, s.Available)
	require.Equal(t, 0, s.Reserved)
}

type flakyCanceller struct {
	failures int
	orders   []string
}

func (c *flakyCanceller) Cancel(_ context.Context, orderID, _ string) error {
	if c.failures > 0 {
		c.failures--
		return errors.New("order store unavailable")
	}
	c.orders = append(c.orders, orderID)
	return nil
}

func TestSweepRetriesCancelBeforeReleasing(t *testing.T) {
	svc, repo := newLedger(t, -time.Second)
	repo.Seed("l-1", 2)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "l-1", 2, "o-1")
	require.NoError(t, err)

	c := &flakyCanceller{failures: 1}
	released, err := svc.SweepExpired(ctx, c, 100)
	require.NoError(t, err)
	require.Zero(t, released)

	// The hold survives the failed cancel; the stock stays reserved and the
	// next tick sees the same reservation.
	s, _ := repo.GetStock(ctx, "l-1")
	require.Equal(t, 0, s.Available)
	require.Equal(t, 2, s.Reserved)

	released, err = svc.SweepExpired(ctx, c, 100)
	require.NoError(t, err)
	require.Equal(t, 1, released)
	require.Equal(t, []string{"o-1"}, c.orders)

	s, _ = repo.GetStock(ctx, "l-1")
	require.Equal(t, 2, s.Available)
	require.Equal(t, 0, s.Reserved)
}

func TestSweepReleasesExpiredHoldsAndCancelsOrders(t *testing.T) {
	svc, repo := newLedger(t, -time.Second)
	repo.Seed("l-1", 2)
	repo.Seed("l-2", 1)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "l-1", 2, "o-1")
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, "l-2", 1, "o-1")
	require.NoError(t, err)

	rec := &cancelRecorder{}
	released, err := svc.SweepExpired(ctx, rec, 100)
	require.NoError(t, err)
	require.Equal(t, 2, released)
	require.Equal(t, []string{"o-1"}, rec.orders)

	s1, _ := repo.GetStock(ctx, "l-1")
	s2, _ := repo.GetStock(ctx, "l-2")
	require.Equal(t, 2, s1.Available)
	require.Equal(t, 0, s1.Reserved)
	require.Equal(t, 1, s2.Available)
	require.Equal(t, 0, s2.Reserved)

	// Nothing left to sweep.
	released, err = svc.SweepExpired(ctx, rec, 100)
	require.NoError(t, err)
	require.Zero(t, released)
}
