package store

import (
	"context"
	"errors"

	"veggiemarket/backend/internal/domain"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshots persists opaque documents under fixed keys, one per state domain.
type Snapshots interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, payload []byte) error
}

// SaleArchive keeps a queryable copy of committed sales.
type SaleArchive interface {
	ArchiveSale(ctx context.Context, sale domain.Sale) error
}
