package repository

import (
	"context"
	"database/sql"
	"fmt"

	"comanda/internal/domain"
	"comanda/internal/errors"
	"comanda/internal/infrastructure/mysql"
)

type MySQLTenantConfigRepository struct {
	db *sql.DB
}

func NewMySQLTenantConfigRepository(db *sql.DB) *MySQLTenantConfigRepository {
	return &MySQLTenantConfigRepository{db: db}
}

func (r *MySQLTenantConfigRepository) FindByTenantID(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	query := `
		SELECT id, tenantId, taxRate, createdAt, updatedAt
		FROM TenantConfig
		WHERE tenantId = ?
	`

	var config domain.TenantConfig
	err := mysql.Executor(ctx, r.db).QueryRowContext(ctx, query, tenantID).Scan(
		&config.ID, &config.TenantID, &config.TaxRate, &config.CreatedAt, &config.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("tenant config for tenant %s not found", tenantID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying tenant config by tenant id: %w", err)
	}

	return &config, nil
}

func (r *MySQLTenantConfigRepository) Upsert(ctx context.Context, tenantID string, taxRate float64) error {
	query := `
		INSERT INTO TenantConfig (tenantId, taxRate) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE taxRate = VALUES(taxRate)
	`

	if _, err := mysql.Executor(ctx, r.db).ExecContext(ctx, query, tenantID, taxRate); err != nil {
		return fmt.Errorf("upserting tenant config: %w", err)
	}
	return nil
}
