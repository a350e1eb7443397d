package mysql

import (
	"database/sql"
	"errors"
	"fmt"

	driver "github.com/go-sql-driver/mysql"

	"comanda/internal/config"
)

func NewConnection(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := DSN(cfg)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// DSN builds the driver connection string. Times are parsed into time.Time in UTC.
func DSN(cfg config.DatabaseConfig) string {
	c := driver.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	c.DBName = cfg.Name
	c.ParseTime = true
	// RowsAffected counts matched rows, so an UPDATE that rewrites identical values is not a miss.
	c.ClientFoundRows = true
	c.MultiStatements = false
	return c.FormatDSN()
}

// IsDuplicateKey reports a unique constraint violation (ER_DUP_ENTRY).
func IsDuplicateKey(err error) bool {
	return errorNumber(err) == 1062
}

// IsDeadlock reports a deadlock or lock wait timeout.
func IsDeadlock(err error) bool {
	n := errorNumber(err)
	return n == 1213 || n == 1205
}

func errorNumber(err error) uint16 {
	var mysqlErr *driver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number
	}
	return 0
}
