package shared

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"gymdir/internal/domain"
	"gymdir/internal/storage/memory"
	mysqlstore "gymdir/internal/storage/mysql"
)

// Store is what the binaries need from a storage driver.
type Store interface {
	domain.Store
	domain.EquipmentCatalog
}

// OpenStore connects the driver named by cfg.StoreDriver. The returned
// closer releases the connection pool.
func OpenStore(ctx context.Context, cfg Config) (Store, func() error, error) {
	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on exit")
		return memory.New(), func() error { return nil }, nil
	case "mysql":
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("sql.Open: %w", err)
		}
		db.SetMaxOpenConns(32)
		db.SetConnMaxLifetime(5 * time.Minute)
		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		log.Info().Msg("database connection ok")
		return mysqlstore.New(db), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
