package repository

import (
	"context"
)

// Open selects the backing store: Postgres when databaseURL is set, memory
// otherwise. Postgres is migrated before use. The result is wrapped in the
// read-through result cache, whose Close releases the pool.
func Open(ctx context.Context, databaseURL string, cacheSize int) (Store, error) {
	var base Store
	if databaseURL == "" {
		base = NewMemoryStore()
	} else {
		pg, err := NewPostgresStore(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		base = pg
	}

	store, err := NewCachingStore(base, cacheSize)
	if err != nil {
		if closer, ok := base.(interface{ Close() }); ok {
			closer.Close()
		}
		return nil, err
	}
	return store, nil
}
