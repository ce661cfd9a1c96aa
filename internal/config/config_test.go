package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "Asia/Seoul", cfg.Location.String())
	assert.Equal(t, "file", cfg.StoreBackend)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, map[string]string{"2동": "temp_and_humidity_ch1", "3동": "temp_and_humidity_ch2"}, cfg.Layout.ZoneChannels)
	assert.Equal(t, map[string][]string{"2동": {"soil_ch1"}}, cfg.Layout.SoilProbes)
	assert.Equal(t, "2동", cfg.PrimaryZone)
	assert.Equal(t, 10.0, cfg.Indicators.BaseTempC)
	assert.Equal(t, "03-01", cfg.Indicators.GDDStart.String())
	assert.Equal(t, "11-01", cfg.Indicators.ChillStart.String())
	assert.Equal(t, "02-14", cfg.Indicators.ChillEnd.String())
	assert.Equal(t, 7.2, cfg.Indicators.ChillMaxC)
	assert.False(t, cfg.Indicators.ResetGDDEachYear)
	assert.Equal(t, 60, cfg.ChillTargetDays)
	assert.Equal(t, 80.0, cfg.BudGDD)
	assert.Equal(t, 500.0, cfg.BloomGDD)
	assert.Equal(t, 5.0, cfg.Irrigation.RateMMPerHour)
	assert.Equal(t, 0.7, cfg.Irrigation.TargetRel)
	assert.Equal(t, 0.03, cfg.Irrigation.DefaultK)
	assert.Equal(t, 3*time.Hour, cfg.Irrigation.Params.EventMaxGap)
	assert.Empty(t, cfg.MQTTBroker)
	assert.Equal(t, 1883, cfg.MQTTPort)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", " debug ")
	t.Setenv("STATION_TZ", "UTC")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_LOG_SQL", "true")
	t.Setenv("ZONE_CHANNELS", "north=temp_and_humidity_ch3")
	t.Setenv("PRIMARY_ZONE", "north")
	t.Setenv("SOIL_CHANNELS", "north=soil_ch1+soil_ch2, south=soil_ch3")
	t.Setenv("GDD_RESET_ANNUALLY", "1")
	t.Setenv("IRRIGATION_EVENT_MAX_GAP", "2h")
	t.Setenv("IRRIGATION_PLATEAU_LOOKAHEAD", "5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, time.UTC.String(), cfg.Location.String())
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.True(t, cfg.LogSQL)
	assert.Equal(t, []string{"soil_ch1", "soil_ch2"}, cfg.Layout.SoilProbes["north"])
	assert.Equal(t, []string{"soil_ch3"}, cfg.Layout.SoilProbes["south"])
	assert.True(t, cfg.Indicators.ResetGDDEachYear)
	assert.Equal(t, 2*time.Hour, cfg.Irrigation.Params.EventMaxGap)
	assert.Equal(t, 5, cfg.Irrigation.Params.PlateauLookahead)
}

func TestLoadFromEnvErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"app env", map[string]string{"APP_ENV": "staging"}, "invalid APP_ENV"},
		{"log level", map[string]string{"LOG_LEVEL": "loud"}, "invalid LOG_LEVEL"},
		{"backend", map[string]string{"STORE_BACKEND": "s3"}, "invalid STORE_BACKEND"},
		{"driver", map[string]string{"DB_DRIVER": "postgres"}, "invalid DB_DRIVER"},
		{"source", map[string]string{"SOURCE": "ftp"}, "invalid SOURCE"},
		{"file source without file", map[string]string{"SOURCE": "file"}, "INPUT_FILE is required"},
		{"time zone", map[string]string{"STATION_TZ": "Mars/Olympus"}, "invalid STATION_TZ"},
		{"int", map[string]string{"DB_MAX_OPEN_CONNS": "many"}, `invalid DB_MAX_OPEN_CONNS "many"`},
		{"duration", map[string]string{"FETCH_TIMEOUT": "soon"}, "invalid FETCH_TIMEOUT"},
		{"bool", map[string]string{"DB_LOG_SQL": "maybe"}, "invalid DB_LOG_SQL"},
		{"zone pair", map[string]string{"ZONE_CHANNELS": "2동"}, "invalid ZONE_CHANNELS"},
		{"duplicate zone", map[string]string{"ZONE_CHANNELS": "a=x,a=y", "PRIMARY_ZONE": "a"}, "duplicate zone"},
		{"primary zone", map[string]string{"PRIMARY_ZONE": "9동"}, "invalid PRIMARY_ZONE"},
		{"empty probe", map[string]string{"SOIL_CHANNELS": "2동=soil_ch1+"}, "empty probe"},
		{"month day", map[string]string{"GDD_START": "13-01"}, "invalid GDD_START"},
		{"chill band", map[string]string{"CHILL_MIN_C": "8"}, "invalid CHILL_MAX_C"},
		{"float", map[string]string{"BASE_TEMP_C": "ten"}, "invalid BASE_TEMP_C"},
		{"irrigation target", map[string]string{"IRRIGATION_TARGET_REL": "1.5"}, "invalid irrigation settings"},
		{"irrigation rate", map[string]string{"IRRIGATION_RATE_MM_H": "0"}, "invalid irrigation settings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
