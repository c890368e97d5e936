package repositories

import (
	"context"

	"storefront-order-service/models"
)

// Repository is the set of operations available inside one transaction.
// Lock* methods take a row lock held until the transaction ends.
type Repository interface {
	FindProduct(ctx context.Context, id uint64) (*models.Product, error)
	LockProduct(ctx context.Context, id uint64) (*models.Product, error)
	LockSizeStock(ctx context.Context, productID uint64, size string) (*models.ProductSizeStock, error)
	DecrementSizeStock(ctx context.Context, stockID uint64, quantity int) error
	DecrementFlatStock(ctx context.Context, productID uint64, quantity int) error
	RecordMovement(ctx context.Context, movement *models.StockMovement) error
	CreateOrder(ctx context.Context, order *models.Order) error
	LockOrder(ctx context.Context, id uint64) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error
}

type Store interface {
	// Transaction runs fn in a single database transaction. The transaction
	// commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(repo Repository) error) error

	GetProduct(ctx context.Context, id uint64) (*models.Product, error)
	GetOrder(ctx context.Context, id uint64) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error)
	ListBatch(ctx context.Context, batchID string) ([]models.Order, error)
}
