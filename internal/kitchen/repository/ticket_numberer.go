package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"comanda/internal/domain"
	"comanda/internal/infrastructure/mysql"
)

const businessDateLayout = "2006-01-02"

// MySQLTicketNumberer hands out a per-tenant daily sequence that survives
// restarts and is shared by every Kitchen instance.
type MySQLTicketNumberer struct {
	db *sql.DB
}

func NewMySQLTicketNumberer(db *sql.DB) *MySQLTicketNumberer {
	return &MySQLTicketNumberer{db: db}
}

func (n *MySQLTicketNumberer) Next(ctx context.Context, tenantID string, now time.Time) (string, error) {
	// LAST_INSERT_ID(expr) makes the new value visible in the OK packet of
	// this statement, so no second round trip on the same connection is needed.
	query := `
		INSERT INTO TicketSequences (tenantId, businessDate, seq)
		VALUES (?, ?, LAST_INSERT_ID(1))
		ON DUPLICATE KEY UPDATE seq = LAST_INSERT_ID(seq + 1)
	`
	result, err := mysql.Executor(ctx, n.db).ExecContext(ctx, query, tenantID, now.UTC().Format(businessDateLayout))
	if err != nil {
		return "", fmt.Errorf("incrementing ticket sequence: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("reading ticket sequence: %w", err)
	}
	return domain.FormatTicketNumber(int(seq)), nil
}

// MemoryTicketNumberer is a process-local daily counter. Numbers restart with
// the process; they are display labels, not identifiers.
type MemoryTicketNumberer struct {
	mu       sync.Mutex
	counters map[string]dailyCounter
}

type dailyCounter struct {
	date string
	seq  int
}

func NewMemoryTicketNumberer() *MemoryTicketNumberer {
	return &MemoryTicketNumberer{counters: make(map[string]dailyCounter)}
}

func (n *MemoryTicketNumberer) Next(_ context.Context, tenantID string, now time.Time) (string, error) {
	date := now.UTC().Format(businessDateLayout)

	n.mu.Lock()
	defer n.mu.Unlock()

	c := n.counters[tenantID]
	if c.date != date {
		c = dailyCounter{date: date}
	}
	c.seq++
	n.counters[tenantID] = c
	return domain.FormatTicketNumber(c.seq), nil
}
