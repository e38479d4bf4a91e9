// Package memory is an in-process catalog and order store.
//
// Locking: every product row has its own mutex, held for the whole of a
// settlement or update that touches it and always acquired in ascending id
// order. Store.mu guards the maps and is only ever taken after row locks,
// never before, so readers never wait on a settlement in progress.
package memory

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	catalog "github.com/dmehra2102/inventory-order-system/internal/catalog/domain"
	"github.com/dmehra2102/inventory-order-system/internal/order/application"
	"github.com/dmehra2102/inventory-order-system/internal/order/domain"
	"github.com/dmehra2102/inventory-order-system/pkg/outbox"
)

type productRow struct {
	mu      sync.Mutex
	seq     int64
	p       catalog.Product
	deleted bool
}

type Store struct {
	mu       sync.RWMutex
	seq      int64
	products map[uuid.UUID]*productRow
	orders   []domain.Order
	orderIdx map[uuid.UUID]int
	events   []outbox.Event
	eventSeq int64
	leases   map[int64]time.Time
}

func New() *Store {
	return &Store{
		products: make(map[uuid.UUID]*productRow),
		orderIdx: make(map[uuid.UUID]int),
		leases:   make(map[int64]time.Time),
	}
}

// Catalog

func (s *Store) List(_ context.Context) ([]catalog.Product, error) {
	s.mu.RLock()
	rows := make([]*productRow, 0, len(s.products))
	for _, row := range s.products {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	out := make([]catalog.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.p)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Store) NameExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nameTaken(name), nil
}

func (s *Store) nameTaken(name string) bool {
	for _, row := range s.products {
		if strings.EqualFold(row.p.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) Create(_ context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(p.Name) {
		return catalog.ErrDuplicateName()
	}
	s.seq++
	s.products[p.ID] = &productRow{seq: s.seq, p: p}
	return nil
}

func (s *Store) Update(_ context.Context, id uuid.UUID, patch catalog.Patch) (catalog.Product, error) {
	row := s.row(id)
	if row == nil {
		return catalog.Product{}, catalog.ErrNotFound()
	}
	row.mu.Lock()
	defer row.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if row.deleted {
		return catalog.Product{}, catalog.ErrNotFound()
	}
	row.p = row.p.Apply(patch)
	return row.p, nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	row := s.row(id)
	if row == nil {
		return catalog.ErrNotFound()
	}
	row.mu.Lock()
	defer row.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if row.deleted {
		return catalog.ErrNotFound()
	}
	row.deleted = true
	delete(s.products, id)
	return nil
}

func (s *Store) row(id uuid.UUID) *productRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products[id]
}

// Orders

func (s *Store) FindProducts(_ context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if row, ok := s.products[id]; ok {
			out = append(out, row.p)
		}
	}
	return out, nil
}

func (s *Store) Settle(ctx context.Context, fn func(ctx context.Context, tx application.SettlementTx) error) error {
	tx := &settlementTx{store: s, deltas: make(map[uuid.UUID]int)}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (s *Store) FetchOrder(_ context.Context, id uuid.UUID) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.orderIdx[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound()
	}
	return s.orders[i].Clone(), nil
}

func (s *Store) FetchAllOrders(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o.Clone())
	}
	return out, nil
}

var errTxState = errors.New("memory: settlement handle misused")

type settlementTx struct {
	store  *Store
	locked []*productRow
	rows   map[uuid.UUID]*productRow
	deltas map[uuid.UUID]int
	order  *domain.Order
	events []outbox.Event
}

func (tx *settlementTx) LockProducts(_ context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	if tx.rows != nil {
		return nil, errTxState
	}
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	sorted = slices.Compact(sorted)

	tx.store.mu.RLock()
	rows := make([]*productRow, 0, len(sorted))
	for _, id := range sorted {
		if row, ok := tx.store.products[id]; ok {
			rows = append(rows, row)
		}
	}
	tx.store.mu.RUnlock()

	tx.rows = make(map[uuid.UUID]*productRow, len(rows))
	for _, row := range rows {
		row.mu.Lock()
		tx.locked = append(tx.locked, row)
	}

	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	out := make([]catalog.Product, 0, len(rows))
	for _, row := range rows {
		if row.deleted {
			continue
		}
		tx.rows[row.p.ID] = row
		out = append(out, row.p)
	}
	return out, nil
}

func (tx *settlementTx) DecrementStock(_ context.Context, items []domain.ItemRequest) error {
	if tx.rows == nil {
		return errTxState
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	pending := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		row, ok := tx.rows[item.ProductID]
		if !ok {
			return domain.ErrUnknownProducts()
		}
		p := row.p
		p.Stock -= tx.deltas[item.ProductID] + pending[item.ProductID]
		if err := domain.CheckStock(p, item.Quantity); err != nil {
			return err
		}
		pending[item.ProductID] += item.Quantity
	}
	for id, qty := range pending {
		tx.deltas[id] += qty
	}
	return nil
}

func (tx *settlementTx) PersistOrder(_ context.Context, o domain.Order) error {
	if tx.order != nil {
		return errTxState
	}
	c := o.Clone()
	tx.order = &c
	return nil
}

func (tx *settlementTx) Enqueue(_ context.Context, ev outbox.Event) error {
	tx.events = append(tx.events, ev)
	return nil
}

func (tx *settlementTx) commit() error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.order != nil {
		if _, dup := s.orderIdx[tx.order.ID]; dup {
			return errors.New("memory: duplicate order id")
		}
	}
	for id, qty := range tx.deltas {
		row := tx.rows[id]
		row.p.Stock -= qty
	}
	if tx.order != nil {
		s.orderIdx[tx.order.ID] = len(s.orders)
		s.orders = append(s.orders, *tx.order)
	}
	for _, ev := range tx.events {
		s.eventSeq++
		ev.ID = s.eventSeq
		ev.Status = outbox.StatusPending
		s.events = append(s.events, ev)
	}
	return nil
}

func (tx *settlementTx) release() {
	for i := len(tx.locked) - 1; i >= 0; i-- {
		tx.locked[i].mu.Unlock()
	}
	tx.locked = nil
}
