package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
)

type migrator interface {
	Up(ctx context.Context, steps int) (int, error)
	Down(ctx context.Context, steps int) (int, error)
	Status(ctx context.Context) (postgres.MigrationStatus, error)
}

func main() {
	var (
		direction string
		steps     int
		dsn       string
	)

	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: POSTGRES_DSN)")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := execute(ctx, store.Migrator(), direction, steps, os.Stdout); err != nil {
		fail("%v", err)
	}
}

// execute выполняет одну команду мигратора и печатает итоговое состояние схемы.
func execute(ctx context.Context, m migrator, direction string, steps int, out io.Writer) error {
	var (
		action string
		count  int
		err    error
	)

	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		action = "migrate up"
		count, err = m.Up(ctx, steps)
	case "down":
		action = "migrate down"
		count, err = m.Down(ctx, steps)
	case "status":
		action = "migration status"
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", direction)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", action, err)
	}

	status, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	if action == "migration status" {
		_, _ = fmt.Fprintf(out, "migration status: version=%d applied=%d pending=%d\n", status.Version, status.Applied, status.Pending)
		return nil
	}
	_, _ = fmt.Fprintf(out, "%s ok: changed=%d version=%d applied=%d pending=%d\n", action, count, status.Version, status.Applied, status.Pending)
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
