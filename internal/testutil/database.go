package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"comanda/internal/infrastructure/mysql"
)

// SetupTestDB abre la base de pruebas.
// Usa COMANDA_TEST_DSN o, por defecto, una BD MySQL en localhost:3306 llamada 'comanda_test'.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("COMANDA_TEST_DSN")
	if dsn == "" {
		dsn = "root:@tcp(localhost:3306)/comanda_test?parseTime=true&clientFoundRows=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// SetupTestTables crea las tablas con el mismo esquema que produccion.
func SetupTestTables(t *testing.T, db *sql.DB) {
	t.Helper()

	if err := mysql.Migrate(context.Background(), db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
}

// CleanupTestDB vacia las tablas (hijas primero) y cierra la conexion.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	for i := len(mysql.Tables) - 1; i >= 0; i-- {
		name := mysql.Tables[i].Name
		if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s", name)); err != nil {
			t.Logf("failed to clean table %s: %v", name, err)
		}
	}

	db.Close()
}
