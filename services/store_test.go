package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"

	"storefront-order-service/models"
	"storefront-order-service/repositories"
)

// memStore runs one transaction at a time, which gives every Lock* call the
// row-lock semantics the service relies on. A failed transaction restores
// the state captured when it began.
type memStore struct {
	mu sync.Mutex

	products  map[uint64]models.Product
	stocks    map[uint64]models.ProductSizeStock
	orders    map[uint64]models.Order
	movements []models.StockMovement
	nextID    uint64

	// conflicts makes the next N transactions fail with a MySQL deadlock.
	conflicts      int
	createOrderErr error
	transactions   int
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[uint64]models.Product),
		stocks:   make(map[uint64]models.ProductSizeStock),
		orders:   make(map[uint64]models.Order),
		nextID:   1000,
	}
}

func (s *memStore) addProduct(p models.Product, sizes map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for size, qty := range sizes {
		s.nextID++
		s.stocks[s.nextID] = models.ProductSizeStock{ID: s.nextID, ProductID: p.ID, Size: size, Quantity: qty}
	}
	p.SizeStocks = nil
	s.products[p.ID] = p
}

func (s *memStore) sizeQuantity(productID uint64, size string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.stocks {
		// sizes compare case-insensitively, like MySQL's default collation
		if st.ProductID == productID && strings.EqualFold(st.Size, size) {
			return st.Quantity
		}
	}
	return -1
}

func (s *memStore) flatQuantity(productID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.products[productID]
	if p.StockQuantity == nil {
		return 0
	}
	return *p.StockQuantity
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memStore) movementCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movements)
}

type memSnapshot struct {
	products  map[uint64]models.Product
	stocks    map[uint64]models.ProductSizeStock
	orders    map[uint64]models.Order
	movements []models.StockMovement
	nextID    uint64
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		products:  make(map[uint64]models.Product, len(s.products)),
		stocks:    make(map[uint64]models.ProductSizeStock, len(s.stocks)),
		orders:    make(map[uint64]models.Order, len(s.orders)),
		movements: append([]models.StockMovement(nil), s.movements...),
		nextID:    s.nextID,
	}
	for k, v := range s.products {
		if v.StockQuantity != nil {
			q := *v.StockQuantity
			v.StockQuantity = &q
		}
		snap.products[k] = v
	}
	for k, v := range s.stocks {
		snap.stocks[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.products = snap.products
	s.stocks = snap.stocks
	s.orders = snap.orders
	s.movements = snap.movements
	s.nextID = snap.nextID
}

func (s *memStore) Transaction(ctx context.Context, fn func(repo repositories.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions++
	if s.conflicts > 0 {
		s.conflicts--
		return &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	}

	snap := s.snapshot()
	if err := fn(&memRepo{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) GetProduct(ctx context.Context, id uint64) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memRepo{s: s}).FindProduct(ctx, id)
}

func (s *memStore) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, repositories.ErrOrderNotFound
	}
	return &o, nil
}

func (s *memStore) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.OrderNumber == number {
			return &o, nil
		}
	}
	return nil, repositories.ErrOrderNotFound
}

func (s *memStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []models.Order
	for _, o := range s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.BatchID != "" && (o.BatchID == nil || *o.BatchID != filter.BatchID) {
			continue
		}
		if filter.Email != "" && o.CustomerEmail != filter.Email {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })

	start := (filter.Page - 1) * filter.PageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (s *memStore) ListBatch(ctx context.Context, batchID string) ([]models.Order, error) {
	orders, _, err := s.ListOrders(ctx, models.OrderFilter{BatchID: batchID, Page: 1, PageSize: 1 << 20})
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, err
}

type memRepo struct {
	s *memStore
}

func (r *memRepo) FindProduct(ctx context.Context, id uint64) (*models.Product, error) {
	p, ok := r.s.products[id]
	if !ok {
		return nil, repositories.ErrProductNotFound
	}
	if p.StockQuantity != nil {
		q := *p.StockQuantity
		p.StockQuantity = &q
	}
	p.SizeStocks = nil
	for _, st := range r.s.stocks {
		if st.ProductID == id {
			p.SizeStocks = append(p.SizeStocks, st)
		}
	}
	sort.Slice(p.SizeStocks, func(i, j int) bool { return p.SizeStocks[i].Size < p.SizeStocks[j].Size })
	return &p, nil
}

func (r *memRepo) LockProduct(ctx context.Context, id uint64) (*models.Product, error) {
	return r.FindProduct(ctx, id)
}

func (r *memRepo) LockSizeStock(ctx context.Context, productID uint64, size string) (*models.ProductSizeStock, error) {
	for _, st := range r.s.stocks {
		if st.ProductID == productID && st.Size == size {
			return &st, nil
		}
	}
	return nil, repositories.ErrSizeNotFound
}

func (r *memRepo) DecrementSizeStock(ctx context.Context, stockID uint64, quantity int) error {
	st, ok := r.s.stocks[stockID]
	if !ok || st.Quantity < quantity {
		return repositories.ErrInsufficientStock
	}
	st.Quantity -= quantity
	r.s.stocks[stockID] = st
	return nil
}

func (r *memRepo) DecrementFlatStock(ctx context.Context, productID uint64, quantity int) error {
	p, ok := r.s.products[productID]
	if !ok || p.StockQuantity == nil || *p.StockQuantity < quantity {
		return repositories.ErrInsufficientStock
	}
	q := *p.StockQuantity - quantity
	p.StockQuantity = &q
	r.s.products[productID] = p
	return nil
}

func (r *memRepo) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	r.s.nextID++
	movement.ID = r.s.nextID
	r.s.movements = append(r.s.movements, *movement)
	return nil
}

func (r *memRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	if r.s.createOrderErr != nil {
		return r.s.createOrderErr
	}
	r.s.nextID++
	order.ID = r.s.nextID
	r.s.orders[order.ID] = *order
	return nil
}

func (r *memRepo) LockOrder(ctx context.Context, id uint64) (*models.Order, error) {
	o, ok := r.s.orders[id]
	if !ok {
		return nil, repositories.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memRepo) SaveOrder(ctx context.Context, order *models.Order) error {
	r.s.orders[order.ID] = *order
	return nil
}
