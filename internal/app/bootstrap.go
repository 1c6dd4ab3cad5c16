package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"careerstack/apps/converter/internal/config"
	"careerstack/apps/converter/internal/events"
	"careerstack/apps/converter/internal/office"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
)

// Dependencies are the long-lived resources the service runs on. DB and
// Publisher are nil when their feature is disabled.
type Dependencies struct {
	DB          *sql.DB
	NSQProducer *nsq.Producer
	Publisher   events.Publisher
	Supervisor  *office.Supervisor
	Bridge      *office.Bridge
}

func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	// Database
	if cfg.EnableHistory {
		db, err := OpenDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		deps.DB = db
	}

	// NSQ Producer
	if cfg.EnableEvents {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		producer.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn), nsq.LogLevelWarning)
		deps.NSQProducer = producer
		deps.Publisher = producer

		// Topic pre-creation runs in the background; nsqd may still be starting.
		go func() {
			time.Sleep(2 * time.Second)
			events.CreateTopics(context.WithoutCancel(ctx), nil, cfg.NSQDHTTP, config.TopicConversionResult)
		}()
	}

	// Office
	sup, bridge, err := StartOffice(ctx, cfg, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Supervisor = sup
	deps.Bridge = bridge

	return deps, nil
}

// StartOffice launches the office listener and returns a bridge to it. A
// failed launch is only logged; the bridge restarts office on first use.
func StartOffice(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*office.Supervisor, *office.Bridge, error) {
	sup := office.NewSupervisor(office.SupervisorOptions{
		UnoserverPath: cfg.UnoserverPath,
		SofficePath:   cfg.SofficePath,
		Host:          cfg.SofficeHost,
		Port:          cfg.UnoserverPort,
		UnoPort:       cfg.SofficePort,
		StartupDelay:  cfg.StartupDelay(),
		KillGrace:     cfg.KillGrace(),
	}, logger)

	if err := sup.Start(ctx); err != nil {
		if ctx.Err() != nil {
			sup.Stop()
			return nil, nil, err
		}
		logger.Warn("office not running, will retry on first conversion", "error", err)
	}

	bridge := office.NewBridge(office.BridgeOptions{
		Host:           cfg.SofficeHost,
		Port:           cfg.UnoserverPort,
		UnoconvertPath: cfg.UnoconvertPath,
		Timeout:        cfg.ConversionTimeout(),
	}, sup, logger)

	return sup, bridge, nil
}

// OpenDatabase connects to Postgres, retrying while it comes up, and applies
// pending migrations.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := PingWithRetry(ctx, db, cfg.BootstrapRetryAttempts, cfg.RetryDelay()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Migrations
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_ = db.Close()
		return nil, fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied successfully")

	return db, nil
}

type contextPinger interface {
	PingContext(ctx context.Context) error
}

// PingWithRetry pings up to attempts times, sleeping delay between failures.
func PingWithRetry(ctx context.Context, p contextPinger, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = p.PingContext(ctx); err == nil {
			return nil
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", attempts)
		if i < attempts-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return err
}

// Close stops office and releases connections. Safe on a partially built value.
func (d *Dependencies) Close() {
	if d == nil {
		return
	}
	if d.Supervisor != nil {
		d.Supervisor.Stop()
	}
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}
