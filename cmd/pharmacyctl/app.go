package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/medflow/pharmacy-backend/internal/inventory/forecast"
	"github.com/medflow/pharmacy-backend/internal/inventory/repository"
	"github.com/medflow/pharmacy-backend/internal/inventory/service"
	"github.com/medflow/pharmacy-backend/pkg/clock"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/metrics"
	"github.com/medflow/pharmacy-backend/pkg/storage"
	"github.com/urfave/cli/v2"
)

const serviceName = "pharmacyctl"

type envKey struct{}

// env is built once per invocation by the Before hook
type env struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *database.DB
	clock clock.Clock
	out   io.Writer
}

func fromContext(c *cli.Context) *env {
	return c.Context.Value(envKey{}).(*env)
}

func orgFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "org",
		Usage:    "Organization ID",
		Required: true,
		EnvVars:  []string{"PHARMA_ORGANIZATION_ID"},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  serviceName,
		Usage: "Operate the pharmacy inventory database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "driver",
				Usage:   "database/sql driver (postgres or pgx)",
				Value:   config.DriverPgx,
				EnvVars: []string{"PHARMA_DATABASE_DRIVER"},
			},
			&cli.StringFlag{
				Name:    "db-url",
				Usage:   "Database connection URL (overrides configuration)",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:  "at",
				Usage: "Pin the clock to a date (YYYY-MM-DD) or RFC3339 instant",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply the schema migrations",
				Action: runMigrate,
			},
			{
				Name:  "seed",
				Usage: "Seed the medicine catalogue and sample stock for an organization",
				Flags: []cli.Flag{
					orgFlag(),
					&cli.Int64Flag{Name: "rand-seed", Usage: "Seed for sample quantities (0 uses the clock)"},
				},
				Action: runSeed,
			},
			{
				Name:  "scan",
				Usage: "Run the insight and alert scans",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "org", Usage: "Organization ID (all organizations when empty)"},
				},
				Action: runScan,
			},
			{
				Name:  "forecast",
				Usage: "Forecast a medicine's daily demand",
				Flags: []cli.Flag{
					orgFlag(),
					&cli.StringFlag{Name: "medicine", Usage: "Medicine ID", Required: true},
					&cli.IntFlag{Name: "days", Usage: "Forecast horizon in days", Value: 7},
				},
				Action: runForecast,
			},
			{
				Name:   "export",
				Usage:  "Upload the organization's batch list as CSV to object storage",
				Flags:  []cli.Flag{orgFlag()},
				Action: runExport,
			},
		},
	}
}

// parseAt accepts a calendar date (UTC midnight) or an RFC3339 instant
func parseAt(value string) (clock.Clock, error) {
	if value == "" {
		return clock.Real{}, nil
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return clock.Fixed{At: t}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid --at %q: want YYYY-MM-DD or RFC3339", value)
	}
	return clock.Fixed{At: t.UTC()}, nil
}

func setup(c *cli.Context) error {
	// help needs no database
	switch c.Args().First() {
	case "", "help", "h":
		return nil
	}

	cfg, err := config.Load(serviceName)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg.Database.Driver = c.String("driver")
	if url := c.String("db-url"); url != "" {
		cfg.Database.URL = url
	}
	if err := cfg.Database.Validate(cfg.Server.Environment); err != nil {
		return err
	}

	clk, err := parseAt(c.String("at"))
	if err != nil {
		return err
	}

	log := logger.New(serviceName, cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return err
	}

	c.Context = context.WithValue(c.Context, envKey{}, &env{
		cfg:   cfg,
		log:   log,
		db:    db,
		clock: clk,
		out:   c.App.Writer,
	})
	return nil
}

func teardown(c *cli.Context) error {
	if e, ok := c.Context.Value(envKey{}).(*env); ok && e.db != nil {
		return e.db.Close()
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newScheduler(e *env) *service.Scheduler {
	batchRepo := repository.NewBatchRepository(e.db)
	alertRepo := repository.NewAlertRepository(e.db)
	m := metrics.New("pharmacyctl")

	insights := service.NewInsightEngine(batchRepo, repository.NewInsightRepository(e.db), e.clock, nil, m, e.log)
	alerts := service.NewAlertScanner(batchRepo, alertRepo, e.clock, nil, nil, m, e.log)
	return service.NewScheduler(insights, alerts, batchRepo, 0, e.log)
}

func runMigrate(c *cli.Context) error {
	e := fromContext(c)
	if err := e.db.Migrate(c.Context); err != nil {
		return err
	}
	e.log.Info().Msg("migrations applied")
	return nil
}

func runSeed(c *cli.Context) error {
	e := fromContext(c)
	medicineRepo := repository.NewMedicineRepository(e.db)

	seeder := service.NewSeeder(
		medicineRepo,
		repository.NewBatchRepository(e.db),
		repository.NewDemandRepository(e.db),
		e.db,
		e.clock,
		seededRand(c.Int64("rand-seed")),
		e.log,
	)

	added, err := seeder.SeedCatalogue(c.Context)
	if err != nil {
		return err
	}
	if err := seeder.SeedSampleData(c.Context, c.String("org")); err != nil {
		return err
	}

	return printJSON(e.out, map[string]any{
		"organization_id":    c.String("org"),
		"medicines_inserted": added,
	})
}

func runScan(c *cli.Context) error {
	e := fromContext(c)
	scheduler := newScheduler(e)

	if org := c.String("org"); org != "" {
		result, err := scheduler.ScanOrganization(c.Context, org)
		if err != nil {
			return err
		}
		return printJSON(e.out, result)
	}

	scanned := scheduler.RunCycle(c.Context)
	return printJSON(e.out, map[string]int{"organizations_scanned": scanned})
}

func runForecast(c *cli.Context) error {
	e := fromContext(c)

	days := c.Int("days")
	if days > e.cfg.Forecast.MaxHorizon {
		return fmt.Errorf("--days must be at most %d", e.cfg.Forecast.MaxHorizon)
	}

	generator := forecast.NewGenerator(repository.NewDemandRepository(e.db), e.clock, e.cfg.Forecast.HistoryDays, e.log)
	result, err := generator.Run(c.Context, c.String("org"), c.String("medicine"), days)
	if err != nil {
		return err
	}
	return printJSON(e.out, result)
}

func runExport(c *cli.Context) error {
	e := fromContext(c)
	if !e.cfg.Storage.Enabled() {
		return fmt.Errorf("object storage is not configured: set PHARMA_STORAGE_ENDPOINT and PHARMA_STORAGE_BUCKET")
	}

	store, err := storage.NewMinioClient(c.Context, e.cfg.Storage)
	if err != nil {
		return err
	}

	exporter := service.NewExporter(repository.NewBatchRepository(e.db), store, e.clock, e.log)
	key, err := exporter.ExportBatches(c.Context, c.String("org"))
	if err != nil {
		return err
	}
	return printJSON(e.out, map[string]string{"bucket": e.cfg.Storage.Bucket, "key": key})
}
