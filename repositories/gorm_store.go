package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-order-service/models"
)

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepo{db: tx})
	})
}

// GetProduct reads the product without locking; quantities may be stale.
func (s *gormStore) GetProduct(ctx context.Context, id uint64) (*models.Product, error) {
	return (&gormRepo{db: s.db}).FindProduct(ctx, id)
}

func (s *gormStore) GetOrder(ctx context.Context, id uint64) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	return &order, nil
}

func (s *gormStore) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Where("order_number = ?", number).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", number, err)
	}
	return &order, nil
}

func (s *gormStore) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.BatchID != "" {
		query = query.Where("batch_id = ?", filter.BatchID)
	}
	if filter.Email != "" {
		query = query.Where("customer_email = ?", filter.Email)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var orders []models.Order
	err := query.
		Order("created_at DESC, id DESC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

func (s *gormStore) ListBatch(ctx context.Context, batchID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list batch %s: %w", batchID, err)
	}
	return orders, nil
}

type gormRepo struct {
	db *gorm.DB
}

func (r *gormRepo) FindProduct(ctx context.Context, id uint64) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("SizeStocks", func(db *gorm.DB) *gorm.DB { return db.Order("size ASC") }).
		Preload("Campaigns").
		First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("find product %d: %w", id, err)
	}
	return &product, nil
}

func (r *gormRepo) LockProduct(ctx context.Context, id uint64) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product %d: %w", id, err)
	}
	return &product, nil
}

func (r *gormRepo) LockSizeStock(ctx context.Context, productID uint64, size string) (*models.ProductSizeStock, error) {
	var stock models.ProductSizeStock
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND size = ?", productID, size).
		First(&stock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSizeNotFound
		}
		return nil, fmt.Errorf("lock size stock %d/%s: %w", productID, size, err)
	}
	return &stock, nil
}

func (r *gormRepo) DecrementSizeStock(ctx context.Context, stockID uint64, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.ProductSizeStock{}).
		Where("id = ? AND quantity >= ?", stockID, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("decrement size stock %d: %w", stockID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *gormRepo) DecrementFlatStock(ctx context.Context, productID uint64, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return fmt.Errorf("decrement stock of product %d: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *gormRepo) RecordMovement(ctx context.Context, movement *models.StockMovement) error {
	if err := r.db.WithContext(ctx).Create(movement).Error; err != nil {
		return fmt.Errorf("record stock movement: %w", err)
	}
	return nil
}

func (r *gormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *gormRepo) LockOrder(ctx context.Context, id uint64) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order %d: %w", id, err)
	}
	return &order, nil
}

func (r *gormRepo) SaveOrder(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Save(order).Error; err != nil {
		return fmt.Errorf("save order %d: %w", order.ID, err)
	}
	return nil
}
