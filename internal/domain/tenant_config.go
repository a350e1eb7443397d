package domain

import "time"

type TenantConfig struct {
	ID        int
	TenantID  string
	TaxRate   float64
	CreatedAt time.Time
	UpdatedAt time.Time
}
