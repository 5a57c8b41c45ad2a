package repository

import (
	"context"
	"database/sql"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var testDB *sql.DB

func setupTestDB() (func(context.Context, ...testcontainers.TerminateOption) error, error) {
	var (
		dbName = "testdb"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:15",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, err
	}

	dbHost, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, err
	}

	dbPort, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, err
	}

	connStr := "postgres://" + dbUser + ":" + dbPwd + "@" + dbHost + ":" + dbPort.Port() + "/" + dbName + "?sslmode=disable"
	testDB, err = sql.Open("pgx", connStr)
	if err != nil {
		return dbContainer.Terminate, err
	}

	_, err = testDB.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			slug VARCHAR(255) UNIQUE NOT NULL,
			price NUMERIC(10, 2) NOT NULL,
			cost_price NUMERIC(10, 2)
		);
		CREATE TABLE IF NOT EXISTS inventories (
			id UUID PRIMARY KEY,
			product_id UUID UNIQUE NOT NULL REFERENCES products (id) ON DELETE CASCADE,
			quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
			low_stock_threshold INTEGER NOT NULL DEFAULT 10,
			is_visible BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS inventory_logs (
			id UUID PRIMARY KEY,
			inventory_id UUID NOT NULL REFERENCES inventories (id) ON DELETE CASCADE,
			change INTEGER NOT NULL,
			new_quantity INTEGER NOT NULL CHECK (new_quantity >= 0),
			reason VARCHAR(50) NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return dbContainer.Terminate, err
	}

	return dbContainer.Terminate, nil
}

func TestMain(m *testing.M) {
	teardown, err := setupTestDB()
	if err != nil {
		log.Fatalf("could not start postgres container: %v", err)
	}

	m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
}

func seedInventoryRow(t *testing.T, quantity int) uuid.UUID {
	t.Helper()

	productID := uuid.New()
	inventoryID := uuid.New()

	_, err := testDB.Exec(
		`INSERT INTO products (id, name, slug, price, cost_price) VALUES ($1, $2, $3, 19.99, 7.50)`,
		productID, "Test Product", "test-product-"+productID.String()[:8],
	)
	if err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}

	_, err = testDB.Exec(
		`INSERT INTO inventories (id, product_id, quantity) VALUES ($1, $2, $3)`,
		inventoryID, productID, quantity,
	)
	if err != nil {
		t.Fatalf("failed to seed inventory: %v", err)
	}

	return inventoryID
}

func TestAdjustQuantityWritesAuditLog(t *testing.T) {
	repo := NewInventoryRepository(testDB)
	ctx := context.Background()

	id := seedInventoryRow(t, 5)

	inv, logEntry, err := repo.AdjustQuantity(ctx, id, 3, "restock", "weekly delivery", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Quantity != 8 {
		t.Errorf("expected quantity 8, got %d", inv.Quantity)
	}
	if !inv.InStock {
		t.Error("expected in_stock to be derived true")
	}
	if logEntry.Change != 3 || logEntry.NewQuantity != 8 {
		t.Errorf("unexpected log entry: %+v", logEntry)
	}
	if logEntry.Metadata["notes"] != "weekly delivery" {
		t.Errorf("expected notes in metadata, got %v", logEntry.Metadata)
	}

	logs, err := repo.ListLogs(ctx, id, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one persisted log entry, got %d", len(logs))
	}
	if logs[0].Metadata["notes"] != "weekly delivery" {
		t.Errorf("metadata did not survive the round trip: %v", logs[0].Metadata)
	}
}

func TestAdjustQuantityMissingRow(t *testing.T) {
	repo := NewInventoryRepository(testDB)

	_, _, err := repo.AdjustQuantity(context.Background(), uuid.New(), 1, "restock", "", nil)
	if err != ErrInventoryNotFound {
		t.Fatalf("expected ErrInventoryNotFound, got %v", err)
	}
}

func TestSetVisibilityLeavesNoAuditTrail(t *testing.T) {
	repo := NewInventoryRepository(testDB)
	ctx := context.Background()

	id := seedInventoryRow(t, 4)

	inv, err := repo.SetVisibility(ctx, id, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.IsVisible {
		t.Error("expected is_visible false")
	}
	if inv.Quantity != 4 {
		t.Errorf("visibility change must not touch quantity, got %d", inv.Quantity)
	}

	logs, err := repo.ListLogs(ctx, id, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("visibility changes must not be audited, found %d entries", len(logs))
	}
}

func TestProperty_AdjustQuantityFloorsAtZero(t *testing.T) {
	repo := NewInventoryRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("the stored quantity is max(0, current+change) and the log keeps the requested delta", prop.ForAll(
		func(initial int, change int) bool {
			id := seedInventoryRow(t, initial)
			defer testDB.Exec("DELETE FROM inventories WHERE id = $1", id)

			inv, logEntry, err := repo.AdjustQuantity(ctx, id, change, "correction", "", nil)
			if err != nil {
				t.Logf("adjustment failed: %v", err)
				return false
			}

			expected := initial + change
			if expected < 0 {
				expected = 0
			}
			if inv.Quantity != expected {
				t.Logf("expected quantity %d, got %d", expected, inv.Quantity)
				return false
			}
			return logEntry.Change == change && logEntry.NewQuantity == expected
		},
		gen.IntRange(0, 500),
		gen.IntRange(-1000, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
