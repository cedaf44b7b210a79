package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liorwn/openclaw-cloudflare/internal/audit"
)

// setupClickHouseContainer starts a ClickHouse container for testing.
// It skips the test if Docker is unavailable.
func setupClickHouseContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	clickHouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start ClickHouse container: %v", err)
		return nil, ""
	}

	host, err := clickHouseContainer.Host(ctx)
	if err != nil {
		_ = clickHouseContainer.Terminate(ctx)
		t.Skipf("Failed to get container host: %v", err)
		return nil, ""
	}

	port, err := clickHouseContainer.MappedPort(ctx, "9000")
	if err != nil {
		_ = clickHouseContainer.Terminate(ctx)
		t.Skipf("Failed to get mapped port: %v", err)
		return nil, ""
	}

	return clickHouseContainer, host + ":" + port.Port()
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	clickHouseContainer, dsn := setupClickHouseContainer(ctx, t)
	defer func() {
		if err := clickHouseContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	}()

	sink, err := New(dsn, "openclaw_audit")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	events := []audit.Event{
		{Type: audit.EventSync, OccurredAt: time.Now().UTC(), Success: true, Files: 12},
		{Type: audit.EventRestore, OccurredAt: time.Now().UTC(), Success: true, Files: 3},
		{Type: audit.EventRestart, OccurredAt: time.Now().UTC(), Success: false, Detail: "no gateway found"},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Failed to send event %s: %v", e.Type, err)
		}
	}

	var count uint64
	row := sink.conn.QueryRow(ctx, "SELECT count() FROM openclaw_audit")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("Failed to count events: %v", err)
	}
	if count != uint64(len(events)) {
		t.Fatalf("expected %d events, got %d", len(events), count)
	}
}
