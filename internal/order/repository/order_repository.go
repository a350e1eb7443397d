package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"comanda/internal/domain"
	"comanda/internal/errors"
	"comanda/internal/infrastructure/mysql"
)

const orderColumns = `
	id, tenantId, tableId, customerId, customerName, waiterId, COALESCE(notes, ''),
	status, paymentStatus, subtotal, taxRate, tax, discount, total,
	createdAt, updatedAt, completedAt, cancelledAt`

// MySQLOrderRepository reads and writes order headers. Items are loaded with
// their order through MySQLOrderItemRepository.
type MySQLOrderRepository struct {
	db    *sql.DB
	items *MySQLOrderItemRepository
}

func NewMySQLOrderRepository(db *sql.DB, items *MySQLOrderItemRepository) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db, items: items}
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.Order, error) {
	return r.findOne(ctx, `WHERE tenantId = ? AND id = ?`, false, tenantID, id)
}

// FindByIDForUpdate locks the order row for the rest of the transaction in ctx.
func (r *MySQLOrderRepository) FindByIDForUpdate(ctx context.Context, tenantID, id string) (*domain.Order, error) {
	return r.findOne(ctx, `WHERE tenantId = ? AND id = ?`, true, tenantID, id)
}

// FindOpenByTable returns the table's PENDING or IN_PROGRESS order.
func (r *MySQLOrderRepository) FindOpenByTable(ctx context.Context, tenantID, tableID string) (*domain.Order, error) {
	return r.findOne(ctx, `WHERE tenantId = ? AND tableId = ? AND status IN ('PENDING', 'IN_PROGRESS')`, true, tenantID, tableID)
}

func (r *MySQLOrderRepository) findOne(ctx context.Context, where string, forUpdate bool, args ...interface{}) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders ` + where
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(mysql.Executor(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}

	items, err := r.items.FindByOrderIDs(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *MySQLOrderRepository) List(ctx context.Context, tenantID string, f domain.OrderFilter) ([]domain.Order, error) {
	where := []string{"tenantId = ?"}
	args := []interface{}{tenantID}
	if f.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*f.Status))
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

	query := `SELECT ` + orderColumns + ` FROM Orders WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY createdAt DESC LIMIT ?`

	rows, err := mysql.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}

	items, err := r.items.FindByOrderIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *MySQLOrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO Orders (id, tenantId, tableId, customerId, customerName, waiterId, notes,
			status, paymentStatus, subtotal, taxRate, tax, discount, total, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := mysql.Executor(ctx, r.db).ExecContext(ctx, query,
		o.ID, o.TenantID, o.TableID, o.CustomerID, o.CustomerName, o.WaiterID, o.Notes,
		o.Status, o.PaymentStatus, o.Subtotal, o.TaxRate, o.Tax, o.Discount, o.Total,
		o.CreatedAt, o.UpdatedAt,
	)
	if mysql.IsDuplicateKey(err) {
		return errors.NewConflictError(fmt.Sprintf("table %s already has an open order", o.TableID))
	}
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

// Update writes every mutable header column.
func (r *MySQLOrderRepository) Update(ctx context.Context, o *domain.Order) error {
	query := `
		UPDATE Orders
		SET customerId = ?, customerName = ?, waiterId = ?, notes = ?, status = ?, paymentStatus = ?,
			subtotal = ?, taxRate = ?, tax = ?, discount = ?, total = ?,
			updatedAt = ?, completedAt = ?, cancelledAt = ?
		WHERE tenantId = ? AND id = ?
	`

	result, err := mysql.Executor(ctx, r.db).ExecContext(ctx, query,
		o.CustomerID, o.CustomerName, o.WaiterID, o.Notes, o.Status, o.PaymentStatus,
		o.Subtotal, o.TaxRate, o.Tax, o.Discount, o.Total,
		o.UpdatedAt, o.CompletedAt, o.CancelledAt,
		o.TenantID, o.ID,
	)
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", o.ID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.TenantID, &o.TableID, &o.CustomerID, &o.CustomerName, &o.WaiterID, &o.Notes,
		&o.Status, &o.PaymentStatus, &o.Subtotal, &o.TaxRate, &o.Tax, &o.Discount, &o.Total,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt, &o.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
