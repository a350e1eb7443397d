package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

// Tables lists every table owned by the three services, in creation order.
var Tables = []struct {
	Name  string
	Query string
}{
	{"TenantConfig", createTenantConfigTable},
	{"Orders", createOrdersTable},
	{"OrderItems", createOrderItemsTable},
	{"Carts", createCartsTable},
	{"KitchenTickets", createKitchenTicketsTable},
	{"KitchenTicketItems", createKitchenTicketItemsTable},
	{"TicketSequences", createTicketSequencesTable},
	{"OrderNotifications", createOrderNotificationsTable},
}

const createTenantConfigTable = `
CREATE TABLE IF NOT EXISTS TenantConfig (
	id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	tenantId VARCHAR(64) NOT NULL UNIQUE,
	taxRate DECIMAL(6,4) NOT NULL DEFAULT 0,
	createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`

// openSession is only set while the order is open, so the unique index allows
// any number of closed orders per table but a single open one.
const createOrdersTable = `
CREATE TABLE IF NOT EXISTS Orders (
	id CHAR(36) NOT NULL PRIMARY KEY,
	tenantId VARCHAR(64) NOT NULL,
	tableId VARCHAR(64) NOT NULL,
	customerId VARCHAR(64),
	customerName VARCHAR(150),
	waiterId VARCHAR(64),
	notes TEXT,
	status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
	paymentStatus VARCHAR(20) NOT NULL DEFAULT 'PENDING',
	subtotal DECIMAL(12,2) NOT NULL DEFAULT 0,
	taxRate DECIMAL(6,4) NOT NULL DEFAULT 0,
	tax DECIMAL(12,2) NOT NULL DEFAULT 0,
	discount DECIMAL(12,2) NOT NULL DEFAULT 0,
	total DECIMAL(12,2) NOT NULL DEFAULT 0,
	createdAt DATETIME(3) NOT NULL,
	updatedAt DATETIME(3) NOT NULL,
	completedAt DATETIME(3),
	cancelledAt DATETIME(3),
	openSession VARCHAR(130) AS (IF(status IN ('PENDING','IN_PROGRESS'), CONCAT(tenantId, ':', tableId), NULL)) STORED,
	UNIQUE KEY uq_open_session (openSession),
	INDEX idx_tenant_status (tenantId, status)
)`

const createOrderItemsTable = `
CREATE TABLE IF NOT EXISTS OrderItems (
	id CHAR(36) NOT NULL PRIMARY KEY,
	orderId CHAR(36) NOT NULL,
	menuItemId VARCHAR(64) NOT NULL,
	name VARCHAR(255) NOT NULL,
	description TEXT,
	station VARCHAR(64),
	courseNumber INT NOT NULL DEFAULT 1,
	notes TEXT,
	unitPrice DECIMAL(12,2) NOT NULL,
	quantity INT NOT NULL,
	modifiers JSON NOT NULL,
	subtotal DECIMAL(12,2) NOT NULL,
	modifiersTotal DECIMAL(12,2) NOT NULL,
	total DECIMAL(12,2) NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
	rejectionReason VARCHAR(255),
	acceptedAt DATETIME(3),
	preparingAt DATETIME(3),
	readyAt DATETIME(3),
	servedAt DATETIME(3),
	createdAt DATETIME(3) NOT NULL,
	updatedAt DATETIME(3) NOT NULL,
	FOREIGN KEY (orderId) REFERENCES Orders(id) ON DELETE CASCADE,
	INDEX idx_order (orderId)
)`

const createCartsTable = `
CREATE TABLE IF NOT EXISTS Carts (
	tenantId VARCHAR(64) NOT NULL,
	tableId VARCHAR(64) NOT NULL,
	document JSON NOT NULL,
	updatedAt DATETIME(3) NOT NULL,
	PRIMARY KEY (tenantId, tableId)
)`

const createKitchenTicketsTable = `
CREATE TABLE IF NOT EXISTS KitchenTickets (
	id CHAR(36) NOT NULL PRIMARY KEY,
	tenantId VARCHAR(64) NOT NULL,
	orderId CHAR(36) NOT NULL,
	tableId VARCHAR(64) NOT NULL,
	ticketNumber VARCHAR(16) NOT NULL,
	sourceMessageId VARCHAR(64) NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
	priority VARCHAR(20) NOT NULL DEFAULT 'NORMAL',
	elapsedSeconds INT NOT NULL DEFAULT 0,
	lastTickAt DATETIME(3) NOT NULL,
	isTimerPaused TINYINT(1) NOT NULL DEFAULT 0,
	timerPausedAt DATETIME(3),
	totalPausedSeconds INT NOT NULL DEFAULT 0,
	warningThreshold INT NOT NULL,
	criticalThreshold INT NOT NULL,
	tableName VARCHAR(100),
	floorName VARCHAR(100),
	chefId VARCHAR(64),
	startedAt DATETIME(3),
	readyAt DATETIME(3),
	completedAt DATETIME(3),
	createdAt DATETIME(3) NOT NULL,
	updatedAt DATETIME(3) NOT NULL,
	UNIQUE KEY uq_source_message (tenantId, sourceMessageId),
	INDEX idx_tenant_status (tenantId, status),
	INDEX idx_order (orderId)
)`

const createKitchenTicketItemsTable = `
CREATE TABLE IF NOT EXISTS KitchenTicketItems (
	id CHAR(36) NOT NULL PRIMARY KEY,
	ticketId CHAR(36) NOT NULL,
	orderItemId CHAR(36) NOT NULL,
	menuItemId VARCHAR(64) NOT NULL,
	name VARCHAR(255) NOT NULL,
	quantity INT NOT NULL,
	modifiers JSON NOT NULL,
	notes TEXT,
	station VARCHAR(64),
	courseNumber INT NOT NULL DEFAULT 1,
	status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
	reportedStatus VARCHAR(20) NOT NULL DEFAULT 'ACCEPTED',
	elapsedSeconds INT NOT NULL DEFAULT 0,
	startedAt DATETIME(3),
	readyAt DATETIME(3),
	recallCount INT NOT NULL DEFAULT 0,
	recallReason VARCHAR(255),
	isRush TINYINT(1) NOT NULL DEFAULT 0,
	isAllergy TINYINT(1) NOT NULL DEFAULT 0,
	createdAt DATETIME(3) NOT NULL,
	updatedAt DATETIME(3) NOT NULL,
	UNIQUE KEY uq_order_item (orderItemId),
	FOREIGN KEY (ticketId) REFERENCES KitchenTickets(id) ON DELETE CASCADE,
	INDEX idx_ticket (ticketId)
)`

const createTicketSequencesTable = `
CREATE TABLE IF NOT EXISTS TicketSequences (
	tenantId VARCHAR(64) NOT NULL,
	businessDate DATE NOT NULL,
	seq INT NOT NULL,
	PRIMARY KEY (tenantId, businessDate)
)`

const createOrderNotificationsTable = `
CREATE TABLE IF NOT EXISTS OrderNotifications (
	id CHAR(36) NOT NULL PRIMARY KEY,
	tenantId VARCHAR(64) NOT NULL,
	orderId CHAR(36) NOT NULL,
	tableId VARCHAR(64) NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'UNREAD',
	itemIds JSON NOT NULL,
	message VARCHAR(500) NOT NULL,
	metadata JSON NOT NULL,
	messageId VARCHAR(64) NOT NULL,
	readAt DATETIME(3),
	archivedAt DATETIME(3),
	createdAt DATETIME(3) NOT NULL,
	updatedAt DATETIME(3) NOT NULL,
	UNIQUE KEY uq_message (tenantId, messageId),
	INDEX idx_tenant_status (tenantId, status)
)`

// Migrate creates any missing table. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, tbl := range Tables {
		if _, err := db.ExecContext(ctx, tbl.Query); err != nil {
			return fmt.Errorf("creating table %s: %w", tbl.Name, err)
		}
	}
	return nil
}
