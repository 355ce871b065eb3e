package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
)

// tryMarkProcessed inserts (message_id, handler_name) once inside tx.
// ok=false means the delivery is a duplicate.
func tryMarkProcessed(ctx context.Context, tx pgx.Tx, messageID, handlerName string) (ok bool, err error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO processed_messages (message_id, handler_name)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, messageID, handlerName)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ProcessOnce runs fn in the same transaction as the processed_messages
// fence. A duplicate skips fn and returns processed=false. If fn fails the
// transaction rolls back and the marker does not persist, so a redelivery
// runs again.
//
// fn receives a context carrying the transaction; repository calls made
// with it join the same unit of work.
func (r *Repository) ProcessOnce(ctx context.Context, messageID, handlerName string, fn func(ctx context.Context) error) (processed bool, err error) {
	messageID = strings.TrimSpace(messageID)
	handlerName = strings.TrimSpace(handlerName)
	if handlerName == "" {
		handlerName = "unknown"
	}

	err = withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		// without an id there is nothing to dedupe on; still apply the effect
		if messageID != "" {
			first, err := tryMarkProcessed(ctx, tx, messageID, handlerName)
			if err != nil {
				return err
			}
			if !first {
				return nil
			}
		}
		processed = true
		return fn(ctx)
	})
	if err != nil {
		return false, mapErr("process once", err)
	}
	return processed, nil
}
