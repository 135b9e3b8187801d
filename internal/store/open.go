package store

import (
	"context"
	"fmt"
)

// Open returns the OrderStore for driver, migrated and ready to use.
func Open(ctx context.Context, driver, source string) (OrderStore, error) {
	switch driver {
	case "postgres":
		pg, err := NewPostgres(ctx, source)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case "sqlite":
		return OpenSQLite(source)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
