package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carelinkhq/carelink/internal/dbx"
)

// SQLiteLedger stores slots in a local sqlite table. Writes are synchronous
// read-modify-write statements; correctness relies on sqlite's own locking,
// not application-level mutual exclusion.
type SQLiteLedger struct {
	db *sql.DB
}

func NewSQLiteLedger(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

func (l *SQLiteLedger) Get(ctx context.Context, slot Slot) (string, error) {
	var value string
	err := l.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, string(slot)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get slot[%s]: %w", slot, err)
	}
	return value, nil
}

func (l *SQLiteLedger) Set(ctx context.Context, slot Slot, value string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO slots (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, string(slot), value)
	if err != nil {
		return fmt.Errorf("failed to set slot[%s]: %w", slot, err)
	}
	return nil
}

// Take reads and clears the slot in one transaction so a consumed pending
// action can never be observed twice.
func (l *SQLiteLedger) Take(ctx context.Context, slot Slot) (string, error) {
	var value string
	err := dbx.WithTx(ctx, l.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, string(slot)).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM slots WHERE key = ?`, string(slot))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to take slot[%s]: %w", slot, err)
	}
	return value, nil
}

func (l *SQLiteLedger) Delete(ctx context.Context, slot Slot) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM slots WHERE key = ?`, string(slot))
	if err != nil {
		return fmt.Errorf("failed to delete slot[%s]: %w", slot, err)
	}
	return nil
}

func (l *SQLiteLedger) Clear(ctx context.Context) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(AuthSlots)), ",")
	args := make([]any, len(AuthSlots))
	for i, s := range AuthSlots {
		args[i] = string(s)
	}
	_, err := l.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM slots WHERE key IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to clear slots: %w", err)
	}
	return nil
}
