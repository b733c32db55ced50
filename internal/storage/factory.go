package storage

import (
	"context"
	"fmt"
)

func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

// Open builds the store for kind and initializes it. The store is closed
// again when Init fails.
func Open(ctx context.Context, kind, sqlitePath string) (Store, error) {
	if kind == "" {
		kind = DefaultStoreKind()
	}
	store, err := NewStore(kind, sqlitePath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = CloseIfSupported(store)
		return nil, fmt.Errorf("init %s store: %w", kind, err)
	}
	return store, nil
}
