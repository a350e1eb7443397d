package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comanda/internal/domain"
	"comanda/internal/errors"
	"comanda/internal/infrastructure/mysql"
	"comanda/internal/testutil"
)

// Unit Tests

func TestMemoryTicketNumberer_ResetsDaily(t *testing.T) {
	n := NewMemoryTicketNumberer()
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)

	first, _ := n.Next(ctx, "t1", day)
	second, _ := n.Next(ctx, "t1", day)
	otherTenant, _ := n.Next(ctx, "t2", day)
	nextDay, _ := n.Next(ctx, "t1", day.Add(2*time.Minute))

	assert.Equal(t, "#001", first)
	assert.Equal(t, "#002", second)
	assert.Equal(t, "#001", otherTenant)
	assert.Equal(t, "#001", nextDay)
}

// Integration Tests

func newTicket(tenantID, messageID string, now time.Time) *domain.KitchenTicket {
	id := uuid.NewString()
	return &domain.KitchenTicket{
		ID:                id,
		TenantID:          tenantID,
		OrderID:           uuid.NewString(),
		TableID:           "tb1",
		TicketNumber:      "#001",
		SourceMessageID:   messageID,
		Status:            domain.TicketStatusPending,
		Priority:          domain.PriorityNormal,
		LastTickAt:        now,
		WarningThreshold:  600,
		CriticalThreshold: 900,
		CreatedAt:         now,
		UpdatedAt:         now,
		Items: []domain.KitchenTicketItem{{
			ID:             uuid.NewString(),
			TicketID:       id,
			OrderItemID:    uuid.NewString(),
			MenuItemID:     "m1",
			Name:           "Burger",
			Quantity:       1,
			Modifiers:      []string{"Cheese"},
			CourseNumber:   1,
			Status:         domain.TicketItemStatusPending,
			ReportedStatus: domain.ItemStatusAccepted,
			CreatedAt:      now,
			UpdatedAt:      now,
		}},
	}
}

func TestTicketRepository_InsertFindAndDuplicate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLTicketRepository(db, mysql.NewTransactor(db))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	ticket := newTicket("t1", "msg-1", now)
	require.NoError(t, repo.Insert(ctx, ticket))

	found, err := repo.FindBySourceMessageID(ctx, "t1", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, found.ID)
	require.Len(t, found.Items, 1)
	assert.Equal(t, []string{"Cheese"}, found.Items[0].Modifiers)
	assert.Equal(t, domain.ItemStatusAccepted, found.Items[0].ReportedStatus)

	err = repo.Insert(ctx, newTicket("t1", "msg-1", now))
	_, ok := errors.IsConflictError(err)
	assert.True(t, ok)

	ticketed, err := repo.TicketedOrderItems(ctx, []string{ticket.Items[0].OrderItemID, "other"})
	require.NoError(t, err)
	assert.True(t, ticketed[ticket.Items[0].OrderItemID])
	assert.False(t, ticketed["other"])

	_, err = repo.FindByID(ctx, "t2", ticket.ID)
	_, ok = errors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestTicketRepository_TickIsConditional(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLTicketRepository(db, mysql.NewTransactor(db))
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Millisecond)

	ticket := newTicket("t1", "msg-tick", start)
	ticket.Items[0].Status = domain.TicketItemStatusPreparing
	require.NoError(t, repo.Insert(ctx, ticket))

	// Two timer loops load the same row.
	a := *ticket
	b := *ticket
	now := start.Add(3 * time.Second)
	require.Equal(t, 3, a.Advance(now))
	require.Equal(t, 3, b.Advance(now))

	ok, err := repo.Tick(ctx, &a, start, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Tick(ctx, &b, start, 3)
	require.NoError(t, err)
	assert.False(t, ok, "second loop must not double count")

	found, err := repo.FindByID(ctx, "t1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, found.ElapsedSeconds)
	assert.Equal(t, 3, found.Items[0].ElapsedSeconds)
	assert.True(t, found.LastTickAt.Equal(now))
}

func TestTicketRepository_ListRunningSkipsPaused(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	repo := NewMySQLTicketRepository(db, mysql.NewTransactor(db))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	running := newTicket("t1", "msg-a", now)
	paused := newTicket("t1", "msg-b", now)
	require.NoError(t, repo.Insert(ctx, running))
	require.NoError(t, repo.Insert(ctx, paused))

	paused.Pause(now)
	require.NoError(t, repo.Update(ctx, paused))

	list, err := repo.ListRunning(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, running.ID, list[0].ID)

	active, err := repo.ListActive(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestMySQLTicketNumberer_Sequence(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.SetupTestTables(t, db)
	defer testutil.CleanupTestDB(t, db)

	n := NewMySQLTicketNumberer(db)
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first, err := n.Next(ctx, "t1", day)
	require.NoError(t, err)
	second, err := n.Next(ctx, "t1", day)
	require.NoError(t, err)
	tomorrow, err := n.Next(ctx, "t1", day.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "#001", first)
	assert.Equal(t, "#002", second)
	assert.Equal(t, "#001", tomorrow)
}
