package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/minjin8128-hub/kiwi-last/internal/config"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/service"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/source"
	"github.com/minjin8128-hub/kiwi-last/internal/mqtt"
)

// Collect performs a single run: fetch, recompute, commit, publish.
func Collect(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"station", cfg.StationID,
		"timezone", cfg.Location.String(),
		"store", cfg.StoreBackend,
		"source", cfg.Source,
		"primaryZone", cfg.PrimaryZone,
		"history", cfg.HistoryCallback != "",
		"mqttBroker", cfg.MQTTBroker,
	)

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var src source.Source
	if cfg.Source == "file" {
		src = source.NewFile(cfg.InputFile)
	} else {
		src = source.NewHTTP(cfg.APIURL, source.Credentials{
			ApplicationKey: cfg.ApplicationKey,
			APIKey:         cfg.APIKey,
			MAC:            cfg.MAC,
		}, cfg.FetchTimeout)
	}

	var publisher service.Publisher
	if cfg.MQTTBroker != "" {
		p, err := mqtt.NewPublisher(cfg, logger)
		if err != nil {
			return err
		}
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = p.Connect(connectCtx)
		cancel()
		if err != nil {
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		} else {
			publisher = p
			defer p.Disconnect()
		}
	}

	svc := service.NewService(serviceConfig(cfg), src, st.repo, publisher, logger)
	_, err = svc.Run(ctx)
	return err
}
