package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/maison-pos/internal/staff"
	"github.com/angelmondragon/maison-pos/pkg/config"
	"github.com/angelmondragon/maison-pos/pkg/db"
	"github.com/angelmondragon/maison-pos/pkg/enums"
	"github.com/angelmondragon/maison-pos/pkg/logger"
	"github.com/angelmondragon/maison-pos/pkg/migrate"
	"github.com/angelmondragon/maison-pos/pkg/outbox"
)

func main() {
	// bootstrap logger early (then re-init after config load)
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "command: up|down|status|version|create|validate|bootstrap-manager|dlq")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")

	name := flag.String("name", "", "migration name (create) or display name (bootstrap-manager)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	pin := flag.String("pin", "", "manager PIN for -cmd=bootstrap-manager")
	event := flag.String("event", "", "event type filter for -cmd=dlq")
	register := flag.String("register", "", "register id filter for -cmd=dlq")
	since := flag.Duration("since", 24*time.Hour, "look-back window for -cmd=dlq")
	limit := flag.Int("limit", 50, "max rows for -cmd=dlq")

	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// Commands that do NOT require DB
	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		files, err := migrate.List(*dir)
		if err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Printf("migration validation passed (%d files)\n", len(files))
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up", "down", "status":
		if err := migrate.Run(ctx, sqlDB, *dir, *cmd); err != nil {
			fail("goose %s failed: %v", *cmd, err)
		}

	case "version":
		if *version == "" {
			fail("missing -version for version command")
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, *dir, *version); err != nil {
			fail("goose version migrate failed: %v", err)
		}

	case "bootstrap-manager":
		// A fresh store has no manager to authorize POST /staff, so the first
		// one is seeded here.
		if *name == "" || *pin == "" {
			fail("bootstrap-manager requires -name and -pin")
		}
		svc, err := staff.NewService(staff.NewRepository(dbClient.DB()), cfg.Password, logg)
		requireResource(ctx, logg, "staff service", err)
		summary, err := svc.CreateStaff(ctx, staff.CreateInput{
			DisplayName: *name,
			Role:        enums.StaffRoleManager,
			PIN:         *pin,
		})
		if err != nil {
			fail("bootstrap manager failed: %v", err)
		}
		logg.Info(logg.WithField(ctx, "staff_id", summary.ID.String()), "manager created")
		fmt.Println("created manager:", summary.ID)

	case "dlq":
		rows, err := outbox.NewDLQRepository(dbClient.DB()).List(ctx, outbox.DLQFilter{
			EventType:  enums.OutboxEventType(*event),
			RegisterID: *register,
			Since:      time.Now().Add(-*since),
			Limit:      *limit,
		})
		if err != nil {
			fail("list dlq failed: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				fail("encode dlq row: %v", err)
			}
		}

	default:
		fail("unknown -cmd value: %s", *cmd)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
