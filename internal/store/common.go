package store

import (
	"context"
	"database/sql"
	stderrors "errors"
)

var errNoRows = sql.ErrNoRows

// affected turns a zero-row update or delete into sql.ErrNoRows.
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// deleteByID runs a single-row delete and publishes the change.
func (s *Store) deleteByID(ctx context.Context, resource, query string, id any) error {
	return s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, query, id)
		if err := affected(res, err); err != nil {
			return mapErr("delete", resource, id, err)
		}
		t.changed(resource, ActionDeleted, id)
		return nil
	})
}

// replaceLinks rewrites a many-to-many link table for one owner.
func replaceLinks(ctx context.Context, t *tx, table, ownerCol, targetCol string, ownerID int64, targets []int64) error {
	if _, err := t.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+ownerCol+` = ?`, ownerID); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(targets))
	for _, id := range targets {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := t.ExecContext(ctx, `INSERT INTO `+table+` (`+ownerCol+`, `+targetCol+`) VALUES (?, ?)`, ownerID, id); err != nil {
			return err
		}
	}
	return nil
}
