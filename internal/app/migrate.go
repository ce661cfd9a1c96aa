package app

import (
	"log/slog"

	"github.com/minjin8128-hub/kiwi-last/internal/config"
	"github.com/minjin8128-hub/kiwi-last/internal/db"
	"github.com/minjin8128-hub/kiwi-last/internal/migrate"
)

// Migrate applies pending schema migrations to the SQLite store.
func Migrate(cfg config.Config, logger *slog.Logger) error {
	if cfg.StoreBackend != "sqlite" {
		return errNeedsSQLite
	}
	conn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(conn); err != nil {
			logger.Error("db close", "error", err)
		}
	}()

	pending, err := migrate.Pending(conn)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Info("schema up to date")
		return nil
	}
	logger.Info("applying migrations", "pending", pending)

	n, err := migrate.Run(conn, logger)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "count", n)
	return nil
}
