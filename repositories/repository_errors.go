package repositories

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrSizeNotFound      = errors.New("size not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// IsLockConflict reports whether err is a MySQL deadlock or lock wait
// timeout. The transaction that received it has already been rolled back by
// the server and may be retried as a whole.
func IsLockConflict(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}
	return false
}
