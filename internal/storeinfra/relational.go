package storeinfra

import (
	"context"
	"database/sql"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-query-cache/query/relational"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// RelationalConfig selects the SQL driver and its DSN.
type RelationalConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

func (c RelationalConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverPostgres, DriverSQLite)),
		validation.Field(&c.DSN, validation.Required),
	)
}

// OpenRelational opens and pings the database described by cfg. The
// caller owns the returned handle.
func OpenRelational(ctx context.Context, cfg RelationalConfig) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("storeinfra: open %s: %w", cfg.Driver, err)
	}

	var db *bun.DB
	switch cfg.Driver {
	case DriverSQLite:
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		db = bun.NewDB(sqldb, pgdialect.New())
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storeinfra: ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// SelectWhere compiles filter and scans the matching rows of model's
// table into dest.
func SelectWhere(ctx context.Context, db bun.IDB, dest any, filter any) error {
	clause, err := relational.Compile(filter)
	if err != nil {
		return err
	}
	return clause.Apply(db.NewSelect().Model(dest)).Scan(ctx)
}
