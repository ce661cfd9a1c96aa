package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minjin8128-hub/kiwi-last/internal/config"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/irrigation"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/extract"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/indicators"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writePayload(t *testing.T, dir string) string {
	t.Helper()
	body := fmt.Sprintf(`{
	  "code": 0,
	  "msg": "success",
	  "time": "%d",
	  "data": {
	    "outdoor": {"temperature": {"value": "50.0", "unit": "ºF"}},
	    "temp_and_humidity_ch1": {"temperature": {"value": "68.0", "unit": "ºF"}},
	    "soil_ch1": {"soilmoisture": {"value": "31", "unit": "%%"}}
	  }
	}`, time.Now().Unix())
	path := filepath.Join(dir, "payload.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		AppEnv:       "dev",
		HTTPAddr:     "127.0.0.1:0",
		StationID:    "kiwi",
		Location:     time.UTC,
		DataDir:      filepath.Join(dir, "data"),
		StoreBackend: backend,
		Driver:       "sqlite",
		Path:         filepath.Join(dir, "kiwi.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		Source:       "file",
		InputFile:    writePayload(t, dir),
		Layout: extract.Layout{
			ZoneChannels:   map[string]string{"2동": "temp_and_humidity_ch1"},
			OutdoorChannel: "outdoor",
			SoilProbes:     map[string][]string{"2동": {"soil_ch1"}},
		},
		PrimaryZone: "2동",
		Indicators: indicators.Config{
			BaseTempC:  10,
			GDDStart:   indicators.MonthDay{Month: time.January, Day: 1},
			ChillStart: indicators.MonthDay{Month: time.November, Day: 1},
			ChillEnd:   indicators.MonthDay{Month: time.February, Day: 14},
			ChillMaxC:  7.2,
		},
		ChillTargetDays: 60,
		BudGDD:          80,
		BloomGDD:        500,
		Irrigation: irrigation.Config{
			RateMMPerHour: 5,
			TargetRel:     0.7,
			DefaultK:      0.03,
			Params:        irrigation.DefaultParams(),
		},
	}
}

func TestCollectFileBackend(t *testing.T) {
	cfg := testConfig(t, "file")

	require.NoError(t, Collect(context.Background(), cfg, discard()))

	for _, name := range []string{"daily.csv", "soil_log.csv", "status.json", "raw_last.json"} {
		_, err := os.Stat(filepath.Join(cfg.DataDir, name))
		assert.NoError(t, err, name)
	}
	body, err := os.ReadFile(filepath.Join(cfg.DataDir, "status.json"))
	require.NoError(t, err)
	var status struct {
		StationID string `json:"stationId"`
		Days      int    `json:"days"`
		GDD       struct {
			Total float64 `json:"total"`
		} `json:"gdd"`
	}
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "kiwi", status.StationID)
	assert.Equal(t, 1, status.Days)
	assert.InDelta(t, 10.0, status.GDD.Total, 1e-9)
}

func TestCollectSQLiteBackend(t *testing.T) {
	cfg := testConfig(t, "sqlite")

	require.NoError(t, Collect(context.Background(), cfg, discard()))
	require.NoError(t, Collect(context.Background(), cfg, discard()))

	st, err := openStore(cfg, discard())
	require.NoError(t, err)
	defer st.Close()

	samples, err := st.repo.LoadSamples()
	require.NoError(t, err)
	assert.Len(t, samples, 1, "replaying the same payload must not duplicate samples")
	daily, err := st.repo.LoadDaily()
	require.NoError(t, err)
	assert.Len(t, daily, 1)
}

func TestCollectFailsWithoutInput(t *testing.T) {
	cfg := testConfig(t, "file")
	cfg.InputFile = filepath.Join(t.TempDir(), "missing.json")

	require.Error(t, Collect(context.Background(), cfg, discard()))
	_, err := os.Stat(filepath.Join(cfg.DataDir, "status.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "no status may be written on a failed run")
}

func TestCollectWithoutBroker(t *testing.T) {
	cfg := testConfig(t, "file")
	cfg.MQTTBroker = "127.0.0.1"
	cfg.MQTTPort = freePort(t)
	cfg.MQTTClientID = "kiwi-test"

	require.NoError(t, Collect(context.Background(), cfg, discard()))
}

func TestMigrate(t *testing.T) {
	t.Run("file backend", func(t *testing.T) {
		err := Migrate(testConfig(t, "file"), discard())
		assert.ErrorIs(t, err, errNeedsSQLite)
	})
	t.Run("sqlite backend is idempotent", func(t *testing.T) {
		cfg := testConfig(t, "sqlite")
		require.NoError(t, Migrate(cfg, discard()))
		require.NoError(t, Migrate(cfg, discard()))
	})
}

func TestServe(t *testing.T) {
	cfg := testConfig(t, "file")
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", freePort(t))
	require.NoError(t, Collect(context.Background(), cfg, discard()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, discard()) }()

	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + cfg.HTTPAddr
	waitForOK(t, client, base+"/healthz", 5*time.Second)

	for _, path := range []string{"/api/status", "/api/daily", "/api/soil/2동", "/api/irrigation/2동"} {
		resp, err := client.Get(base + path)
		require.NoError(t, err, path)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(15 * time.Second):
		require.FailNow(t, "Serve did not return after cancel")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.FailNow(t, "server not healthy", "%s after %s", url, timeout)
}
