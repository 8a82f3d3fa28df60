// Package store is the ledger and group/order store behind the settlement
// engine. All multi-row money movement goes through UnitOfWork, which wraps a
// single database transaction.
package store

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store owns the database handle. It is safe for concurrent use.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) isPostgres() bool {
	return s.db.Dialector.Name() == "postgres"
}

// WithinTx runs fn inside one transaction. On Postgres the transaction is
// SERIALIZABLE and rows read through the unit of work are locked FOR UPDATE.
// Any error returned by fn rolls back every write made through uow.
func (s *Store) WithinTx(ctx context.Context, fn func(uow *UnitOfWork) error) error {
	var opts []*sql.TxOptions
	if s.isPostgres() {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UnitOfWork{tx: tx, rowLocks: s.isPostgres()})
	}, opts...)
}

// locked adds FOR UPDATE where the dialect supports row locks. SQLite locks
// the whole database for a write transaction instead.
func (u *UnitOfWork) locked() *gorm.DB {
	if u.rowLocks {
		return u.tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return u.tx
}
