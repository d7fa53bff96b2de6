package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is a scoped transaction. It is only valid inside the function passed to
// DB.InTx; the store commits or rolls it back when that function returns.
type Tx struct {
	tx *sql.Tx
}

// InTx runs fn inside a single transaction. If fn returns an error or panics,
// every write made through the Tx is rolled back; otherwise it is committed.
func (db *DB) InTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			sqlTx.Rollback()
		}
	}()

	if err = fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
