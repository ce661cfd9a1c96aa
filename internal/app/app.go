// Package app wires configuration into the three entry points: a one-shot
// collection run, the read API server and schema migration.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/minjin8128-hub/kiwi-last/internal/config"
	"github.com/minjin8128-hub/kiwi-last/internal/db"
	"github.com/minjin8128-hub/kiwi-last/internal/httpapi"
	"github.com/minjin8128-hub/kiwi-last/internal/migrate"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/repository"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/service"
)

// store is an opened repository plus whatever must be released with it.
type store struct {
	repo  repository.WeatherRepository
	check httpapi.CheckFunc
	conn  *sql.DB
}

func (s *store) Close() {
	if err := db.Close(s.conn); err != nil {
		slog.Error("db close", "error", err)
	}
}

func openStore(cfg config.Config, logger *slog.Logger) (*store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		conn, err := db.Open(cfg, logger)
		if err != nil {
			return nil, err
		}
		if _, err := migrate.Run(conn, logger); err != nil {
			_ = db.Close(conn)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &store{
			repo:  repository.NewRepository(conn),
			check: conn.Ping,
			conn:  conn,
		}, nil
	case "file":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("data dir: %w", err)
		}
		dir := cfg.DataDir
		return &store{
			repo: repository.NewFileRepository(dir),
			check: func() error {
				_, err := os.Stat(dir)
				return err
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func serviceConfig(cfg config.Config) service.Config {
	return service.Config{
		StationID:       cfg.StationID,
		Location:        cfg.Location,
		Layout:          cfg.Layout,
		PrimaryZone:     cfg.PrimaryZone,
		HistoryCallback: cfg.HistoryCallback,
		HistoryDays:     cfg.HistoryDays,
		Indicators:      cfg.Indicators,
		ChillTargetDays: cfg.ChillTargetDays,
		BudGDD:          cfg.BudGDD,
		BloomGDD:        cfg.BloomGDD,
		Irrigation:      cfg.Irrigation,
	}
}

var errNeedsSQLite = errors.New("migrate requires STORE_BACKEND=sqlite")
