package mysql

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "comanda/internal/errors"
)

// TableLocker hands out a named advisory lock per (tenant, table) using
// GET_LOCK. The lock lives on a dedicated connection that is returned to the
// pool once released.
type TableLocker struct {
	db      *sql.DB
	timeout time.Duration
	logger  *zap.Logger
}

func NewTableLocker(db *sql.DB, timeout time.Duration, logger *zap.Logger) *TableLocker {
	return &TableLocker{db: db, timeout: timeout, logger: logger}
}

func (l *TableLocker) Lock(ctx context.Context, tenantID, tableID string) (func(), error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for table lock: %w", err)
	}

	name := LockName(tenantID, tableID)
	var acquired sql.NullInt64
	err = conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, name, int(l.timeout.Seconds())).Scan(&acquired)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("getting table lock: %w", err)
	}
	if !acquired.Valid || acquired.Int64 != 1 {
		conn.Close()
		return nil, apperrors.NewConflictError(fmt.Sprintf("table %s is busy, try again", tableID))
	}

	return func() {
		// The caller's context may already be done; release with a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		var released sql.NullInt64
		err := conn.QueryRowContext(releaseCtx, `SELECT RELEASE_LOCK(?)`, name).Scan(&released)
		switch {
		case err != nil:
			l.logger.Warn("Releasing table lock failed",
				zap.String("tenantId", tenantID),
				zap.String("tableId", tableID),
				zap.Error(err),
			)
		case !released.Valid || released.Int64 != 1:
			l.logger.Warn("Table lock was not held at release",
				zap.String("tenantId", tenantID),
				zap.String("tableId", tableID),
				zap.String("lock", name),
			)
		}
		conn.Close()
	}, nil
}

// LockName hashes the key so every (tenant, table) pair gets its own name
// within the 64 characters GET_LOCK accepts.
func LockName(tenantID, tableID string) string {
	sum := sha1.Sum([]byte(tenantID + "\x00" + tableID))
	return "comanda:table:" + hex.EncodeToString(sum[:])
}
