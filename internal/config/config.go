package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/irrigation"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/extract"
	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/indicators"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	StationID string
	Location  *time.Location
	DataDir   string

	// StoreBackend is "file" (CSV/JSON under DataDir) or "sqlite".
	StoreBackend    string
	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool

	Source         string
	InputFile      string
	APIURL         string
	ApplicationKey string
	APIKey         string
	MAC            string
	FetchTimeout   time.Duration

	HistoryCallback string
	HistoryDays     int

	Layout      extract.Layout
	PrimaryZone string

	Indicators      indicators.Config
	ChillTargetDays int
	BudGDD          float64
	BloomGDD        float64

	Irrigation irrigation.Config

	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string
}

func LoadFromEnv() (Config, error) {
	appEnv := env("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		StationID:       env("STATION_ID", "kiwi"),
		DataDir:         env("DATA_DIR", "data"),
		StoreBackend:    env("STORE_BACKEND", "file"),
		Driver:          env("DB_DRIVER", "sqlite3"),
		DSN:             env("DB_DSN", ""),
		Path:            env("SQLITE_PATH", "data/kiwi.db"),
		Source:          env("SOURCE", "http"),
		InputFile:       env("INPUT_FILE", ""),
		APIURL:          env("STATION_API_URL", "https://api.ecowitt.net/api/v3/device"),
		ApplicationKey:  env("STATION_APPLICATION_KEY", ""),
		APIKey:          env("STATION_API_KEY", ""),
		MAC:             env("STATION_MAC", ""),
		HistoryCallback: env("HISTORY_CALLBACK", ""),
		PrimaryZone:     env("PRIMARY_ZONE", "2동"),
		MQTTBroker:      env("MQTT_BROKER", ""),
		MQTTClientID:    env("MQTT_CLIENT_ID", "kiwi-last"),
		MQTTTopicPrefix: env("MQTT_TOPIC_PREFIX", "stations"),
	}

	switch cfg.StoreBackend {
	case "file", "sqlite":
	default:
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q (allowed: file, sqlite)", cfg.StoreBackend)
	}
	switch cfg.Driver {
	case "sqlite3", "sqlite":
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, sqlite)", cfg.Driver)
	}
	switch cfg.Source {
	case "http":
	case "file":
		if cfg.InputFile == "" {
			return Config{}, fmt.Errorf("INPUT_FILE is required when SOURCE=file")
		}
	default:
		return Config{}, fmt.Errorf("invalid SOURCE %q (allowed: http, file)", cfg.Source)
	}

	tz := env("STATION_TZ", "Asia/Seoul")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("invalid STATION_TZ %q: %w", tz, err)
	}

	if cfg.MaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", 1); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", 1); err != nil {
		return Config{}, err
	}
	if cfg.ConnMaxLifetime, err = envDuration("DB_CONN_MAX_LIFETIME", 0); err != nil {
		return Config{}, err
	}
	if cfg.LogSQL, err = envBool("DB_LOG_SQL", false); err != nil {
		return Config{}, err
	}
	if cfg.FetchTimeout, err = envDuration("FETCH_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.HistoryDays, err = envInt("HISTORY_DAYS", 2); err != nil {
		return Config{}, err
	}
	if cfg.MQTTPort, err = envInt("MQTT_PORT", 1883); err != nil {
		return Config{}, err
	}

	if cfg.Layout, err = loadLayout(); err != nil {
		return Config{}, err
	}
	if _, ok := cfg.Layout.ZoneChannels[cfg.PrimaryZone]; !ok {
		return Config{}, fmt.Errorf("invalid PRIMARY_ZONE %q: not in ZONE_CHANNELS", cfg.PrimaryZone)
	}

	if cfg.Indicators, err = loadIndicators(); err != nil {
		return Config{}, err
	}
	if cfg.ChillTargetDays, err = envInt("CHILL_TARGET_DAYS", 60); err != nil {
		return Config{}, err
	}
	if cfg.BudGDD, err = envFloat("BUD_GDD", 80); err != nil {
		return Config{}, err
	}
	if cfg.BloomGDD, err = envFloat("BLOOM_GDD", 500); err != nil {
		return Config{}, err
	}

	if cfg.Irrigation, err = loadIrrigation(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadLayout() (extract.Layout, error) {
	zones, err := parseAssignments("ZONE_CHANNELS", env("ZONE_CHANNELS", "2동=temp_and_humidity_ch1,3동=temp_and_humidity_ch2"))
	if err != nil {
		return extract.Layout{}, err
	}
	soil, err := parseAssignments("SOIL_CHANNELS", env("SOIL_CHANNELS", "2동=soil_ch1"))
	if err != nil {
		return extract.Layout{}, err
	}
	l := extract.Layout{
		ZoneChannels:    make(map[string]string, len(zones)),
		OutdoorChannel:  env("OUTDOOR_CHANNEL", "outdoor"),
		SoilProbes:      make(map[string][]string, len(soil)),
		SoilTempChannel: env("SOIL_TEMP_CHANNEL", ""),
	}
	for zone, ch := range zones {
		l.ZoneChannels[zone] = ch
	}
	for zone, chs := range soil {
		for _, ch := range strings.Split(chs, "+") {
			if ch = strings.TrimSpace(ch); ch == "" {
				return extract.Layout{}, fmt.Errorf("invalid SOIL_CHANNELS %q: empty probe for zone %s", chs, zone)
			}
			l.SoilProbes[zone] = append(l.SoilProbes[zone], ch)
		}
	}
	return l, nil
}

func loadIndicators() (indicators.Config, error) {
	var (
		c   indicators.Config
		err error
	)
	if c.BaseTempC, err = envFloat("BASE_TEMP_C", 10); err != nil {
		return c, err
	}
	if c.GDDStart, err = envMonthDay("GDD_START", "03-01"); err != nil {
		return c, err
	}
	if c.ChillStart, err = envMonthDay("CHILL_START", "11-01"); err != nil {
		return c, err
	}
	if c.ChillEnd, err = envMonthDay("CHILL_END", "02-14"); err != nil {
		return c, err
	}
	if c.ChillMinC, err = envFloat("CHILL_MIN_C", 0); err != nil {
		return c, err
	}
	if c.ChillMaxC, err = envFloat("CHILL_MAX_C", 7.2); err != nil {
		return c, err
	}
	if c.ChillMaxC < c.ChillMinC {
		return c, fmt.Errorf("invalid CHILL_MAX_C %v: below CHILL_MIN_C %v", c.ChillMaxC, c.ChillMinC)
	}
	if c.ResetGDDEachYear, err = envBool("GDD_RESET_ANNUALLY", false); err != nil {
		return c, err
	}
	return c, nil
}

func loadIrrigation() (irrigation.Config, error) {
	var err error
	c := irrigation.Config{Params: irrigation.DefaultParams()}
	if c.RateMMPerHour, err = envFloat("IRRIGATION_RATE_MM_H", 5); err != nil {
		return c, err
	}
	if c.TargetRel, err = envFloat("IRRIGATION_TARGET_REL", 0.7); err != nil {
		return c, err
	}
	if c.DefaultK, err = envFloat("IRRIGATION_DEFAULT_K", 0.03); err != nil {
		return c, err
	}
	p := &c.Params
	if p.PlateauRise, err = envFloat("IRRIGATION_PLATEAU_RISE", p.PlateauRise); err != nil {
		return c, err
	}
	if p.PlateauMaxSlope, err = envFloat("IRRIGATION_PLATEAU_MAX_SLOPE", p.PlateauMaxSlope); err != nil {
		return c, err
	}
	if p.PlateauLookahead, err = envInt("IRRIGATION_PLATEAU_LOOKAHEAD", p.PlateauLookahead); err != nil {
		return c, err
	}
	if p.EventRise, err = envFloat("IRRIGATION_EVENT_RISE", p.EventRise); err != nil {
		return c, err
	}
	if p.EventMaxGap, err = envDuration("IRRIGATION_EVENT_MAX_GAP", p.EventMaxGap); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid irrigation settings: %w", err)
	}
	return c, nil
}

// parseAssignments reads "a=x,b=y". Keys must be unique.
func parseAssignments(name, s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("invalid %s %q: expected zone=channel", name, part)
		}
		if _, dup := out[k]; dup {
			return nil, fmt.Errorf("invalid %s %q: duplicate zone %s", name, s, k)
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("invalid %s %q: no zones", name, s)
	}
	return out, nil
}

func env(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) (int, error) {
	s := env(name, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func envFloat(name string, def float64) (float64, error) {
	s := env(name, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func envBool(name string, def bool) (bool, error) {
	s := env(name, "")
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	s := env(name, "")
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func envMonthDay(name, def string) (indicators.MonthDay, error) {
	s := env(name, def)
	md, err := indicators.ParseMonthDay(s)
	if err != nil {
		return indicators.MonthDay{}, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return md, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
