//go:build integration

package repository_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/ClickHouse/ch-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/okian/helio/internal/adapters/repository"
)

// Server-backed drivers join the store tests when their address is set:
//
//	HELIO_TEST_POSTGRES_DSN=postgres://... HELIO_TEST_CLICKHOUSE_ADDR=127.0.0.1:9000 \
//		go test -tags integration ./internal/adapters/repository/
func init() {
	if dsn := os.Getenv("HELIO_TEST_POSTGRES_DSN"); dsn != "" {
		serverDrivers[repository.DriverPostgres] = func(t *testing.T) repository.Store {
			return openPostgres(t, dsn)
		}
	}
	if addr := os.Getenv("HELIO_TEST_CLICKHOUSE_ADDR"); addr != "" {
		serverDrivers[repository.DriverClickHouse] = func(t *testing.T) repository.Store {
			return openClickHouse(t, addr)
		}
	}
}

// openPostgres starts every case from empty tables.
func openPostgres(t *testing.T, dsn string) repository.Store {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, `DROP TABLE IF EXISTS sdo_hmi_observations, swpc_solar_regions`); err != nil {
		t.Fatalf("reset postgres: %v", err)
	}

	s, err := repository.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	return s
}

// openClickHouse gives every case its own database and drops it afterwards.
func openClickHouse(t *testing.T, addr string) repository.Store {
	ctx := context.Background()
	db := "helio_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	s, err := repository.OpenClickHouse(ctx, addr, db)
	if err != nil {
		t.Fatalf("open clickhouse: %v", err)
	}
	t.Cleanup(func() {
		conn, err := ch.Dial(ctx, ch.Options{Address: addr})
		if err != nil {
			t.Logf("drop %s: %v", db, err)
			return
		}
		defer conn.Close()
		if err := conn.Do(ctx, ch.Query{Body: "DROP DATABASE IF EXISTS " + db}); err != nil {
			t.Logf("drop %s: %v", db, err)
		}
	})
	return s
}
