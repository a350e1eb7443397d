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

const ticketColumns = `
	id, tenantId, orderId, tableId, ticketNumber, sourceMessageId, status, priority,
	elapsedSeconds, lastTickAt, isTimerPaused, timerPausedAt, totalPausedSeconds,
	warningThreshold, criticalThreshold, tableName, floorName, chefId,
	startedAt, readyAt, completedAt, createdAt, updatedAt`

const ticketItemColumns = `
	id, ticketId, orderItemId, menuItemId, name, quantity, modifiers, COALESCE(notes, ''),
	COALESCE(station, ''), courseNumber, status, reportedStatus, elapsedSeconds, startedAt, readyAt,
	recallCount, recallReason, isRush, isAllergy, createdAt, updatedAt`

// MySQLTicketRepository stores kitchen tickets with their items.
type MySQLTicketRepository struct {
	db *sql.DB
	tx *mysql.Transactor
}

func NewMySQLTicketRepository(db *sql.DB, tx *mysql.Transactor) *MySQLTicketRepository {
	return &MySQLTicketRepository{db: db, tx: tx}
}

// Insert writes the ticket and its items in one transaction. A second ticket
// for the same source message is a ConflictError.
func (r *MySQLTicketRepository) Insert(ctx context.Context, t *domain.KitchenTicket) error {
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO KitchenTickets (id, tenantId, orderId, tableId, ticketNumber, sourceMessageId, status, priority,
				elapsedSeconds, lastTickAt, isTimerPaused, timerPausedAt, totalPausedSeconds,
				warningThreshold, criticalThreshold, tableName, floorName, chefId, createdAt, updatedAt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := mysql.Executor(ctx, r.db).ExecContext(ctx, query,
			t.ID, t.TenantID, t.OrderID, t.TableID, t.TicketNumber, t.SourceMessageID, t.Status, t.Priority,
			t.ElapsedSeconds, t.LastTickAt, t.IsTimerPaused, t.TimerPausedAt, t.TotalPausedSeconds,
			t.WarningThreshold, t.CriticalThreshold, t.TableName, t.FloorName, t.ChefID, t.CreatedAt, t.UpdatedAt,
		)
		if mysql.IsDuplicateKey(err) {
			return errors.NewConflictError(fmt.Sprintf("ticket for message %s already exists", t.SourceMessageID))
		}
		if err != nil {
			return fmt.Errorf("inserting ticket: %w", err)
		}

		for _, item := range t.Items {
			if err := r.insertItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *MySQLTicketRepository) insertItem(ctx context.Context, item domain.KitchenTicketItem) error {
	query := `
		INSERT INTO KitchenTicketItems (id, ticketId, orderItemId, menuItemId, name, quantity, modifiers, notes,
			station, courseNumber, status, reportedStatus, isRush, isAllergy, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	mods, err := encodeModifiers(item.Modifiers)
	if err != nil {
		return err
	}

	_, err = mysql.Executor(ctx, r.db).ExecContext(ctx, query,
		item.ID, item.TicketID, item.OrderItemID, item.MenuItemID, item.Name, item.Quantity, mods, item.Notes,
		item.Station, item.CourseNumber, item.Status, item.ReportedStatus, item.IsRush, item.IsAllergy,
		item.CreatedAt, item.UpdatedAt,
	)
	if mysql.IsDuplicateKey(err) {
		return errors.NewConflictError(fmt.Sprintf("order item %s already has a ticket", item.OrderItemID))
	}
	if err != nil {
		return fmt.Errorf("inserting ticket item: %w", err)
	}
	return nil
}

func (r *MySQLTicketRepository) FindByID(ctx context.Context, tenantID, id string) (*domain.KitchenTicket, error) {
	return r.findOne(ctx, `WHERE tenantId = ? AND id = ?`, false, tenantID, id)
}

// FindByIDForUpdate locks the ticket row for the rest of the transaction in ctx.
func (r *MySQLTicketRepository) FindByIDForUpdate(ctx context.Context, tenantID, id string) (*domain.KitchenTicket, error) {
	return r.findOne(ctx, `WHERE tenantId = ? AND id = ?`, true, tenantID, id)
}

func (r *MySQLTicketRepository) FindBySourceMessageID(ctx context.Context, tenantID, messageID string) (*domain.KitchenTicket, error) {
	return r.findOne(ctx, `WHERE tenantId = ? AND sourceMessageId = ?`, false, tenantID, messageID)
}

func (r *MySQLTicketRepository) findOne(ctx context.Context, where string, forUpdate bool, args ...interface{}) (*domain.KitchenTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM KitchenTickets ` + where
	if forUpdate {
		query += ` FOR UPDATE`
	}

	t, err := scanTicket(mysql.Executor(ctx, r.db).QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("ticket not found")
	}
	if err != nil {
		return nil, fmt.Errorf("querying ticket: %w", err)
	}

	items, err := r.itemsByTicket(ctx, []string{t.ID})
	if err != nil {
		return nil, err
	}
	t.Items = items[t.ID]
	return t, nil
}

// FindOpenByOrder returns the order's tickets that are not COMPLETED or CANCELLED.
func (r *MySQLTicketRepository) FindOpenByOrder(ctx context.Context, tenantID, orderID string) ([]domain.KitchenTicket, error) {
	return r.list(ctx,
		`WHERE tenantId = ? AND orderId = ? AND status NOT IN ('COMPLETED', 'CANCELLED') ORDER BY createdAt FOR UPDATE`,
		tenantID, orderID)
}

// ListActive returns the board: every PENDING, IN_PROGRESS or READY ticket of
// the tenant, oldest first.
func (r *MySQLTicketRepository) ListActive(ctx context.Context, tenantID string) ([]domain.KitchenTicket, error) {
	return r.list(ctx,
		`WHERE tenantId = ? AND status IN ('PENDING', 'IN_PROGRESS', 'READY') ORDER BY createdAt`,
		tenantID)
}

// ListRunning returns the tickets of every tenant whose timer accrues.
func (r *MySQLTicketRepository) ListRunning(ctx context.Context) ([]domain.KitchenTicket, error) {
	return r.list(ctx,
		`WHERE status IN ('PENDING', 'IN_PROGRESS') AND isTimerPaused = 0 ORDER BY tenantId, createdAt`)
}

func (r *MySQLTicketRepository) list(ctx context.Context, where string, args ...interface{}) ([]domain.KitchenTicket, error) {
	rows, err := mysql.Executor(ctx, r.db).QueryContext(ctx, `SELECT `+ticketColumns+` FROM KitchenTickets `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	defer rows.Close()

	var tickets []domain.KitchenTicket
	var ids []string
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ticket: %w", err)
		}
		tickets = append(tickets, *t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tickets: %w", err)
	}

	items, err := r.itemsByTicket(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		tickets[i].Items = items[tickets[i].ID]
	}
	return tickets, nil
}

// TicketedOrderItems reports which of the given order items already have a
// ticket item.
func (r *MySQLTicketRepository) TicketedOrderItems(ctx context.Context, orderItemIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(orderItemIDs))
	if len(orderItemIDs) == 0 {
		return out, nil
	}

	placeholders, args := inArgs(orderItemIDs)
	rows, err := mysql.Executor(ctx, r.db).QueryContext(ctx,
		`SELECT orderItemId FROM KitchenTicketItems WHERE orderItemId IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ticketed items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning ticketed item: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// Update writes every mutable ticket column except the timer counters, which
// only Tick advances.
func (r *MySQLTicketRepository) Update(ctx context.Context, t *domain.KitchenTicket) error {
	query := `
		UPDATE KitchenTickets
		SET status = ?, priority = ?, lastTickAt = ?, isTimerPaused = ?, timerPausedAt = ?, totalPausedSeconds = ?,
			chefId = ?, startedAt = ?, readyAt = ?, completedAt = ?, updatedAt = ?
		WHERE tenantId = ? AND id = ?
	`
	result, err := mysql.Executor(ctx, r.db).ExecContext(ctx, query,
		t.Status, t.Priority, t.LastTickAt, t.IsTimerPaused, t.TimerPausedAt, t.TotalPausedSeconds,
		t.ChefID, t.StartedAt, t.ReadyAt, t.CompletedAt, t.UpdatedAt,
		t.TenantID, t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating ticket: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("ticket with id %s not found", t.ID))
	}
	return nil
}

func (r *MySQLTicketRepository) UpdateItem(ctx context.Context, item domain.KitchenTicketItem) error {
	query := `
		UPDATE KitchenTicketItems
		SET status = ?, reportedStatus = ?, elapsedSeconds = ?, startedAt = ?, readyAt = ?,
			recallCount = ?, recallReason = ?, isRush = ?, updatedAt = ?
		WHERE id = ? AND ticketId = ?
	`
	_, err := mysql.Executor(ctx, r.db).ExecContext(ctx, query,
		item.Status, item.ReportedStatus, item.ElapsedSeconds, item.StartedAt, item.ReadyAt,
		item.RecallCount, item.RecallReason, item.IsRush, item.UpdatedAt,
		item.ID, item.TicketID,
	)
	if err != nil {
		return fmt.Errorf("updating ticket item: %w", err)
	}
	return nil
}

// Tick credits seconds to a ticket whose lastTickAt still equals prev. It
// reports false when another timer already advanced or paused the ticket, so
// concurrent timer loops never double count.
func (r *MySQLTicketRepository) Tick(ctx context.Context, t *domain.KitchenTicket, prev time.Time, seconds int) (bool, error) {
	advanced := false
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		exec := mysql.Executor(ctx, r.db)
		result, err := exec.ExecContext(ctx, `
			UPDATE KitchenTickets
			SET elapsedSeconds = elapsedSeconds + ?, lastTickAt = ?
			WHERE id = ? AND lastTickAt = ? AND isTimerPaused = 0 AND status IN ('PENDING', 'IN_PROGRESS')
		`, seconds, t.LastTickAt, t.ID, prev)
		if err != nil {
			return fmt.Errorf("advancing ticket timer: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		advanced = true

		_, err = exec.ExecContext(ctx, `
			UPDATE KitchenTicketItems SET elapsedSeconds = elapsedSeconds + ?
			WHERE ticketId = ? AND status = 'PREPARING'
		`, seconds, t.ID)
		if err != nil {
			return fmt.Errorf("advancing item timers: %w", err)
		}
		return nil
	})
	return advanced, err
}

func (r *MySQLTicketRepository) itemsByTicket(ctx context.Context, ticketIDs []string) (map[string][]domain.KitchenTicketItem, error) {
	out := make(map[string][]domain.KitchenTicketItem, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return out, nil
	}

	placeholders, args := inArgs(ticketIDs)
	query := `SELECT ` + ticketItemColumns + ` FROM KitchenTicketItems WHERE ticketId IN (` + placeholders + `) ORDER BY courseNumber, createdAt, id`
	rows, err := mysql.Executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ticket items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.KitchenTicketItem
		var mods []byte
		err := rows.Scan(
			&item.ID, &item.TicketID, &item.OrderItemID, &item.MenuItemID, &item.Name, &item.Quantity, &mods, &item.Notes,
			&item.Station, &item.CourseNumber, &item.Status, &item.ReportedStatus, &item.ElapsedSeconds, &item.StartedAt, &item.ReadyAt,
			&item.RecallCount, &item.RecallReason, &item.IsRush, &item.IsAllergy, &item.CreatedAt, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning ticket item: %w", err)
		}
		if err := json.Unmarshal(mods, &item.Modifiers); err != nil {
			return nil, fmt.Errorf("decoding modifiers of ticket item %s: %w", item.ID, err)
		}
		out[item.TicketID] = append(out[item.TicketID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ticket items: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (*domain.KitchenTicket, error) {
	var t domain.KitchenTicket
	err := row.Scan(
		&t.ID, &t.TenantID, &t.OrderID, &t.TableID, &t.TicketNumber, &t.SourceMessageID, &t.Status, &t.Priority,
		&t.ElapsedSeconds, &t.LastTickAt, &t.IsTimerPaused, &t.TimerPausedAt, &t.TotalPausedSeconds,
		&t.WarningThreshold, &t.CriticalThreshold, &t.TableName, &t.FloorName, &t.ChefID,
		&t.StartedAt, &t.ReadyAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeModifiers(mods []string) (string, error) {
	if mods == nil {
		mods = []string{}
	}
	raw, err := json.Marshal(mods)
	if err != nil {
		return "", fmt.Errorf("encoding modifiers: %w", err)
	}
	return string(raw), nil
}

func inArgs(ids []string) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
