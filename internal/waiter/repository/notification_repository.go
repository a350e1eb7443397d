package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"comanda/internal/domain"
	"comanda/internal/errors"
	"comanda/internal/infrastructure/mysql"
)

const notificationColumns = `
	id, tenantId, orderId, tableId, status, itemIds, message, metadata,
	readAt, archivedAt, createdAt, updatedAt`

type MySQLNotificationRepository struct {
	db *sql.DB
}

func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{db: db}
}

// Insert stores a new notification. A second row for the same delivery is a
// ConflictError.
func (r *MySQLNotificationRepository) Insert(ctx context.Context, n *domain.OrderNotification) error {
	itemIDs, err := json.Marshal(nonNil(n.ItemIDs))
	if err != nil {
		return fmt.Errorf("encoding item ids: %w", err)
	}
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	query := `
		INSERT INTO OrderNotifications (id, tenantId, orderId, tableId, status, itemIds, message, metadata,
			messageId, readAt, archivedAt, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = mysql.Executor(ctx, r.db).ExecContext(ctx, query,
		n.ID, n.TenantID, n.OrderID, n.TableID, n.Status, string(itemIDs), n.Message, string(metadata),
		n.Metadata.MessageID, n.ReadAt, n.ArchivedAt, n.CreatedAt, n.UpdatedAt,
	)
	if mysql.IsDuplicateKey(err) {
		return errors.NewConflictError(fmt.Sprintf("notification for message %s already exists", n.Metadata.MessageID))
	}
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

func (r *MySQLNotificationRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.OrderNotification, error) {
	return r.findOne(ctx, `WHERE tenantId = ? AND id = ?`, tenantID, id)
}

// FindByMessageID looks the notification up by the delivery that created it.
func (r *MySQLNotificationRepository) FindByMessageID(ctx context.Context, tenantID, messageID string) (*domain.OrderNotification, error) {
	return r.findOne(ctx, `WHERE tenantId = ? AND messageId = ?`, tenantID, messageID)
}

func (r *MySQLNotificationRepository) findOne(ctx context.Context, where string, args ...interface{}) (*domain.OrderNotification, error) {
	query := `SELECT ` + notificationColumns + ` FROM OrderNotifications ` + where
	n, err := scanNotification(mysql.Executor(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("notification not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification: %w", err)
	}
	return n, nil
}

// List returns the newest notifications first. Archived ones only show up
// when asked for by status.
func (r *MySQLNotificationRepository) List(ctx context.Context, tenantID string, f domain.NotificationFilter) ([]domain.OrderNotification, error) {
	where := []string{"tenantId = ?"}
	args := []interface{}{tenantID}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
	} else {
		where = append(where, "status <> 'ARCHIVED'")
	}
	if f.TableID != "" {
		where = append(where, "tableId = ?")
		args = append(args, f.TableID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)

	query := `SELECT ` + notificationColumns + ` FROM OrderNotifications WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY createdAt DESC LIMIT ?`

	rows, err := mysql.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderNotification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return out, nil
}

func (r *MySQLNotificationRepository) Update(ctx context.Context, n *domain.OrderNotification) error {
	query := `
		UPDATE OrderNotifications
		SET status = ?, readAt = ?, archivedAt = ?, updatedAt = ?
		WHERE tenantId = ? AND id = ?
	`
	result, err := mysql.Executor(ctx, r.db).ExecContext(ctx, query,
		n.Status, n.ReadAt, n.ArchivedAt, n.UpdatedAt, n.TenantID, n.ID)
	if err != nil {
		return fmt.Errorf("updating notification: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("notification with id %s not found", n.ID))
	}
	return nil
}

// MarkAllRead moves every UNREAD notification of the tenant to READ.
func (r *MySQLNotificationRepository) MarkAllRead(ctx context.Context, tenantID string, now time.Time) (int, error) {
	result, err := mysql.Executor(ctx, r.db).ExecContext(ctx, `
		UPDATE OrderNotifications SET status = 'READ', readAt = ?, updatedAt = ?
		WHERE tenantId = ? AND status = 'UNREAD'
	`, now, now, tenantID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return int(n), nil
}

func (r *MySQLNotificationRepository) CountUnread(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := mysql.Executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM OrderNotifications WHERE tenantId = ? AND status = 'UNREAD'`, tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*domain.OrderNotification, error) {
	var n domain.OrderNotification
	var itemIDs, metadata []byte
	err := row.Scan(
		&n.ID, &n.TenantID, &n.OrderID, &n.TableID, &n.Status, &itemIDs, &n.Message, &metadata,
		&n.ReadAt, &n.ArchivedAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemIDs, &n.ItemIDs); err != nil {
		return nil, fmt.Errorf("decoding item ids: %w", err)
	}
	if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &n, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
