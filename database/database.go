package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mrusme/faasboot/config"
	pgxUUID "github.com/vgarvardt/pgx-google-uuid/v5"
	"go.uber.org/zap"
)

var ErrDisabled = errors.New("database is disabled")

// Database owns the connection pool opened during a cold start. The pool is
// reused by every invocation served by the same execution environment.
type Database struct {
	cfg *config.Config
	log *zap.Logger

	poolcfg *pgxpool.Config
	pool    *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Database, error) {
	var err error

	db := new(Database)
	db.cfg = cfg
	db.log = log

	if !db.cfg.Database.Enable {
		return db, nil
	}

	if db.poolcfg, err = pgxpool.ParseConfig(db.cfg.Database.Connection); err != nil {
		return nil, err
	}

	// A warm function instance serves one request at a time.
	db.poolcfg.MaxConns = 2
	db.poolcfg.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		db.log.Debug("Registering UUID Types")
		pgxUUID.Register(c.TypeMap())
		return nil
	}

	if db.pool, err = pgxpool.NewWithConfig(ctx, db.poolcfg); err != nil {
		return nil, err
	}

	if err = db.Ping(ctx); err != nil {
		db.pool.Close()
		return nil, err
	}

	db.log.Info("Database initialized")
	return db, nil
}

func (db *Database) Enabled() bool {
	return db != nil && db.pool != nil
}

// Ping checks that the database answers within five seconds.
func (db *Database) Ping(ctx context.Context) error {
	if !db.Enabled() {
		return ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var one int
	return db.pool.QueryRow(ctx, "select 1").Scan(&one)
}

func (db *Database) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *Database) Shutdown() error {
	if db.Enabled() {
		db.pool.Close()
	}
	return nil
}
