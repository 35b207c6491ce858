package sales

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/shoppos/pos-backend/pkg/db/models"
	"github.com/shoppos/pos-backend/pkg/outbox"
)

// memStore is an in-memory item store and ledger. Decrements are guarded the same way
// the SQL statement is, and each transaction keeps an undo log that is replayed when
// the transaction function fails.
type memStore struct {
	mu         sync.Mutex
	items      map[int64]models.Item
	sales      []models.Sale
	nextSaleID int64
	undo       map[*gorm.DB][]func()

	insertErr error
	lookups   int
}

func newMemStore(items ...models.Item) *memStore {
	store := &memStore{
		items: map[int64]models.Item{},
		undo:  map[*gorm.DB][]func(){},
	}
	for _, item := range items {
		store.items[item.ID] = item
	}
	return store
}

func (m *memStore) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := &gorm.DB{}
	m.mu.Lock()
	m.undo[tx] = nil
	m.mu.Unlock()

	err := fn(tx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		steps := m.undo[tx]
		for i := len(steps) - 1; i >= 0; i-- {
			steps[i]()
		}
	}
	delete(m.undo, tx)
	return err
}

func (m *memStore) DecrementStock(ctx context.Context, tx *gorm.DB, itemID int64, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemID]
	if !ok || item.Quantity < qty {
		return false, nil
	}
	item.Quantity -= qty
	m.items[itemID] = item
	m.undo[tx] = append(m.undo[tx], func() {
		restored := m.items[itemID]
		restored.Quantity += qty
		m.items[itemID] = restored
	})
	return true, nil
}

func (m *memStore) LookupStock(ctx context.Context, tx *gorm.DB, itemID int64) (*models.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	item, ok := m.items[itemID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *memStore) InsertSale(ctx context.Context, tx *gorm.DB, sale *models.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.nextSaleID++
	sale.ID = m.nextSaleID
	m.sales = append(m.sales, *sale)
	id := sale.ID
	m.undo[tx] = append(m.undo[tx], func() {
		for i, existing := range m.sales {
			if existing.ID == id {
				m.sales = append(m.sales[:i], m.sales[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (m *memStore) List(ctx context.Context, filter ListSalesInput) ([]SaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SaleRecord, 0, len(m.sales))
	for i := len(m.sales) - 1; i >= 0; i-- {
		out = append(out, SaleRecord{Sale: m.sales[i]})
	}
	if limit := filter.Limit + 1; len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FindByID(ctx context.Context, id int64) (*SaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sale := range m.sales {
		if sale.ID == id {
			return &SaleRecord{Sale: sale}, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memStore) quantity(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].Quantity
}

func (m *memStore) saleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

func (m *memStore) setItem(item models.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
	err    error
}

func (r *recordingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}
