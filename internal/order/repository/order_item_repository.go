package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"comanda/internal/domain"
	"comanda/internal/errors"
	"comanda/internal/infrastructure/mysql"
)

const itemColumns = `
	id, orderId, menuItemId, name, COALESCE(description, ''), COALESCE(station, ''), courseNumber,
	COALESCE(notes, ''), unitPrice, quantity, modifiers, subtotal, modifiersTotal, total,
	status, rejectionReason, acceptedAt, preparingAt, readyAt, servedAt, createdAt, updatedAt`

type MySQLOrderItemRepository struct {
	db *sql.DB
}

func NewMySQLOrderItemRepository(db *sql.DB) *MySQLOrderItemRepository {
	return &MySQLOrderItemRepository{db: db}
}

func (r *MySQLOrderItemRepository) Insert(ctx context.Context, item domain.OrderItem) error {
	query := `
		INSERT INTO OrderItems (id, orderId, menuItemId, name, description, station, courseNumber, notes,
			unitPrice, quantity, modifiers, subtotal, modifiersTotal, total, status, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	modifiers := item.Modifiers
	if modifiers == nil {
		modifiers = []domain.ItemModifier{}
	}
	mods, err := json.Marshal(modifiers)
	if err != nil {
		return fmt.Errorf("encoding modifiers: %w", err)
	}

	_, err = mysql.Executor(ctx, r.db).ExecContext(ctx, query,
		item.ID, item.OrderID, item.MenuItemID, item.Name, item.Description, item.Station, item.CourseNumber, item.Notes,
		item.UnitPrice, item.Quantity, string(mods), item.Subtotal, item.ModifiersTotal, item.Total, item.Status,
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order item: %w", err)
	}
	return nil
}

// UpdateStatus persists the status columns of one item.
func (r *MySQLOrderItemRepository) UpdateStatus(ctx context.Context, item domain.OrderItem) error {
	query := `
		UPDATE OrderItems
		SET status = ?, rejectionReason = ?, acceptedAt = ?, preparingAt = ?, readyAt = ?, servedAt = ?, updatedAt = ?
		WHERE id = ? AND orderId = ?
	`

	result, err := mysql.Executor(ctx, r.db).ExecContext(ctx, query,
		item.Status, item.RejectionReason, item.AcceptedAt, item.PreparingAt, item.ReadyAt, item.ServedAt, item.UpdatedAt,
		item.ID, item.OrderID,
	)
	if err != nil {
		return fmt.Errorf("updating order item status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("order item with id %s not found", item.ID))
	}
	return nil
}

// FindByOrderIDs groups items by order id, oldest first.
func (r *MySQLOrderItemRepository) FindByOrderIDs(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	out := make(map[string][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
	args := make([]interface{}, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}

	query := `SELECT ` + itemColumns + ` FROM OrderItems WHERE orderId IN (` + placeholders + `) ORDER BY createdAt, id`
	rows, err := mysql.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		var mods []byte
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.MenuItemID, &item.Name, &item.Description, &item.Station, &item.CourseNumber,
			&item.Notes, &item.UnitPrice, &item.Quantity, &mods, &item.Subtotal, &item.ModifiersTotal, &item.Total,
			&item.Status, &item.RejectionReason, &item.AcceptedAt, &item.PreparingAt, &item.ReadyAt, &item.ServedAt,
			&item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		if err := json.Unmarshal(mods, &item.Modifiers); err != nil {
			return nil, fmt.Errorf("decoding modifiers of item %s: %w", item.ID, err)
		}
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order items: %w", err)
	}
	return out, nil
}
