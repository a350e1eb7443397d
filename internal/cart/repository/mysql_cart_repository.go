package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"comanda/internal/domain"
	"comanda/internal/infrastructure/mysql"
)

// MySQLCartRepository stores each cart as one JSON document keyed by (tenant, table).
type MySQLCartRepository struct {
	db *sql.DB
	tx *mysql.Transactor
}

func NewMySQLCartRepository(db *sql.DB, tx *mysql.Transactor) *MySQLCartRepository {
	return &MySQLCartRepository{db: db, tx: tx}
}

func (r *MySQLCartRepository) Get(ctx context.Context, tenantID, tableID string) (*domain.Cart, error) {
	query := `SELECT document FROM Carts WHERE tenantId = ? AND tableId = ?`

	var doc []byte
	err := mysql.Executor(ctx, r.db).QueryRowContext(ctx, query, tenantID, tableID).Scan(&doc)
	if err == sql.ErrNoRows {
		return emptyCart(tenantID, tableID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying cart: %w", err)
	}

	return decodeCart(doc, tenantID, tableID)
}

// Update runs fn on the locked cart row and writes the result back.
func (r *MySQLCartRepository) Update(ctx context.Context, tenantID, tableID string, fn func(*domain.Cart) error) (*domain.Cart, error) {
	var cart *domain.Cart
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		exec := mysql.Executor(ctx, r.db)

		// Make sure a row exists so FOR UPDATE has something to lock.
		_, err := exec.ExecContext(ctx,
			`INSERT IGNORE INTO Carts (tenantId, tableId, document, updatedAt) VALUES (?, ?, ?, ?)`,
			tenantID, tableID, `{"items":[]}`, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("initializing cart: %w", err)
		}

		var doc []byte
		err = exec.QueryRowContext(ctx,
			`SELECT document FROM Carts WHERE tenantId = ? AND tableId = ? FOR UPDATE`,
			tenantID, tableID,
		).Scan(&doc)
		if err != nil {
			return fmt.Errorf("locking cart: %w", err)
		}

		cart, err = decodeCart(doc, tenantID, tableID)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}

		cart.UpdatedAt = time.Now().UTC()
		out, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("encoding cart: %w", err)
		}
		_, err = exec.ExecContext(ctx,
			`UPDATE Carts SET document = ?, updatedAt = ? WHERE tenantId = ? AND tableId = ?`,
			string(out), cart.UpdatedAt, tenantID, tableID,
		)
		if err != nil {
			return fmt.Errorf("updating cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *MySQLCartRepository) Clear(ctx context.Context, tenantID, tableID string) error {
	_, err := mysql.Executor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM Carts WHERE tenantId = ? AND tableId = ?`, tenantID, tableID)
	if err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

func decodeCart(doc []byte, tenantID, tableID string) (*domain.Cart, error) {
	var cart domain.Cart
	if err := json.Unmarshal(doc, &cart); err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}
	cart.TenantID = tenantID
	cart.TableID = tableID
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}

func emptyCart(tenantID, tableID string) *domain.Cart {
	return &domain.Cart{TenantID: tenantID, TableID: tableID, Items: []domain.CartItem{}}
}
