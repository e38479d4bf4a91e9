package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	catalog "github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
	"github.com/dmehra2102/inventory-order-system/internal/order/application"
	"github.com/dmehra2102/inventory-order-system/internal/order/domain"
	"github.com/dmehra2102/inventory-order-system/pkg/apperr"
	"github.com/dmehra2102/inventory-order-system/pkg/outbox"
)

func seed(t *testing.T, s *Store, name string, stock int) catalog.Product {
	t.Helper()
	p := catalog.Product{ID: uuid.New(), Name: name, Description: name, Price: decimal.NewFromInt(10), Stock: stock}
	require.NoError(t, s.Create(context.Background(), p))
	return p
}

func stockOf(t *testing.T, s *Store, id uuid.UUID) int {
	t.Helper()
	products, err := s.FindProducts(context.Background(), []uuid.UUID{id})
	require.NoError(t, err)
	require.Len(t, products, 1)
	return products[0].Stock
}

func TestSettleDiscardsEverythingOnError(t *testing.T) {
	s := New()
	p := seed(t, s, "Tent", 5)
	boom := errors.New("boom")

	err := s.Settle(context.Background(), func(ctx context.Context, tx application.SettlementTx) error {
		_, err := tx.LockProducts(ctx, []uuid.UUID{p.ID})
		require.NoError(t, err)
		require.NoError(t, tx.DecrementStock(ctx, []domain.ItemRequest{{ProductID: p.ID, Quantity: 3}}))
		o, err := domain.NewOrder(uuid.New(), time.Now(), []domain.LineItem{domain.NewLineItem(p, 3)})
		require.NoError(t, err)
		require.NoError(t, tx.PersistOrder(ctx, o))
		require.NoError(t, tx.Enqueue(ctx, outbox.Event{Type: "OrderCreated"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 5, stockOf(t, s, p.ID))
	orders, err := s.FetchAllOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, s.Events())
}

func TestDecrementStockGuardsCumulativeQuantity(t *testing.T) {
	s := New()
	p := seed(t, s, "Stove", 4)

	err := s.Settle(context.Background(), func(ctx context.Context, tx application.SettlementTx) error {
		if _, err := tx.LockProducts(ctx, []uuid.UUID{p.ID}); err != nil {
			return err
		}
		if err := tx.DecrementStock(ctx, []domain.ItemRequest{{ProductID: p.ID, Quantity: 3}}); err != nil {
			return err
		}
		return tx.DecrementStock(ctx, []domain.ItemRequest{{ProductID: p.ID, Quantity: 2}})
	})

	var short *domain.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 1, short.Available)
	assert.Equal(t, 4, stockOf(t, s, p.ID))
}

func TestDisjointSettlementsDoNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New()
	a := seed(t, s, "A", 1)
	b := seed(t, s, "B", 1)

	holding := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Settle(context.Background(), func(ctx context.Context, tx application.SettlementTx) error {
			if _, err := tx.LockProducts(ctx, []uuid.UUID{a.ID}); err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Settle(ctx, func(ctx context.Context, tx application.SettlementTx) error {
		_, err := tx.LockProducts(ctx, []uuid.UUID{b.ID})
		return err
	})
	require.NoError(t, err)

	// readers never wait on row locks
	_, err = s.List(ctx)
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
}

func TestDeleteUnknownProduct(t *testing.T) {
	s := New()
	err := s.Delete(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

func TestOutboxLeases(t *testing.T) {
	s := New()
	s.events = []outbox.Event{{ID: 1, Status: outbox.StatusPending}, {ID: 2, Status: outbox.StatusPending}}
	s.eventSeq = 2
	ctx := context.Background()

	batch, err := s.LockBatch(ctx, "r1", 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	again, err := s.LockBatch(ctx, "r2", 10, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, s.MarkSent(ctx, []int64{1}))
	require.NoError(t, s.MarkFailed(ctx, 2, "broker down"))

	events := s.Events()
	assert.Equal(t, outbox.StatusSent, events[0].Status)
	assert.Equal(t, outbox.StatusPending, events[1].Status)
	assert.Equal(t, 1, events[1].RetryCount)

	s.leases[2] = time.Now().Add(-time.Second)
	s.events[1].Status = outbox.StatusInProgress
	reclaimed, err := s.LockBatch(ctx, "r3", 10, time.Hour)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, "r3", reclaimed[0].RelayID)

	for range outbox.MaxRetries - 1 {
		require.NoError(t, s.MarkFailed(ctx, 2, "broker down"))
	}
	assert.Equal(t, outbox.StatusFailed, s.Events()[1].Status)
}
