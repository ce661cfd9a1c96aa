package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/config"
	"github.com/minjin8128-hub/kiwi-last/internal/httpapi"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/controller"
)

// Serve runs the read API until ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"httpAddr", cfg.HTTPAddr,
		"store", cfg.StoreBackend,
		"dataDir", cfg.DataDir,
		"driver", cfg.Driver,
		"sqlitePath", cfg.Path,
	)

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	mux := httpapi.NewMux(st.check)
	controller.NewWeatherController(st.repo).RegisterRoutes(mux)
	srv := httpapi.NewServer(cfg.HTTPAddr, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
