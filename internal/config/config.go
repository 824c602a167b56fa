package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"voltonic-power/common/config"
	"voltonic-power/internal/models"
)

// Config power engine service configuration
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	Power struct {
		TickInterval       time.Duration // driver cadence, default 60s
		EnergyHoursPerTick float64       // kW -> kWh factor for one tick, defaults to TickInterval in hours
		RandomSeed         int64         // 0 means seed from the clock
		TransitionSteps    int           // gradual transition length, default 6

		// Building defaults applied when a config is created lazily
		SolarCapacityKW  float64
		GridCapacityKW   float64
		SpikeThresholdKW float64

		// Room types that stay on solar when the grid is down; everything else goes to diesel
		GridDownSolarRoomTypes []models.RoomType

		Cancellation struct {
			Threshold          float64 // latch rate, default 0.5
			MinObservations    int     // latch count, default 7
			AnalysisMinSamples int     // below this Analyze reports insufficient data
			RiskyMinScheduled  int     // minimum observations for the risky schedules view
			Probabilities      map[models.RoomType]float64
			DefaultProbability float64
		}

		LoadProfiles map[models.RoomType]models.LoadProfile
		// Profile used for room types missing from LoadProfiles
		FallbackRoomType models.RoomType
	}

	Persistence struct {
		BatchSize      int
		MaxRetries     int
		InitialBackoff time.Duration
	}

	Cache struct {
		ModeKeyPrefix      string // power:mode:{building_id}
		StateKeyPrefix     string // power:state:{building_id}
		ForecastKeyPrefix  string // power:forecast:{building_id}
		StateTTL           time.Duration
		ForecastTTL        time.Duration
		ActionStream       string
		ActionStreamMaxLen int64
	}

	Forecast struct {
		BaseURL        string // empty disables the HTTP forecaster
		HorizonMinutes int
		Timeout        time.Duration
		RetryCount     int
		TrendWindow    int // aggregates kept per building for the trend fallback
	}

	GridStatus struct {
		Enabled bool
		Topic   string
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// DefaultLoadProfiles per room type equipment draws in kW
func DefaultLoadProfiles() map[models.RoomType]models.LoadProfile {
	return map[models.RoomType]models.LoadProfile{
		models.RoomTypeClassroom:  {EquipmentMin: 0.2, EquipmentMax: 0.5, EquipmentIdle: 0.1},
		models.RoomTypeSmartClass: {EquipmentMin: 3.0, EquipmentMax: 4.5, EquipmentIdle: 0.5},
		models.RoomTypeLab:        {EquipmentMin: 2.5, EquipmentMax: 4.0, EquipmentIdle: 0.3},
		models.RoomTypeStaff:      {EquipmentMin: 0.3, EquipmentMax: 0.7, EquipmentIdle: 0.3},
	}
}

// DefaultCancellationProbabilities base chance that a scheduled slot is skipped
func DefaultCancellationProbabilities() map[models.RoomType]float64 {
	return map[models.RoomType]float64{
		models.RoomTypeClassroom:  0.25,
		models.RoomTypeSmartClass: 0.15,
		models.RoomTypeLab:        0.10,
		models.RoomTypeStaff:      0.05,
	}
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "voltonic")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)
	cfg.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "voltonic-power")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1
	cfg.MQTT.ConnectTimeout = 10 * time.Second

	cfg.Power.TickInterval = getEnvDuration("TICK_INTERVAL", 60*time.Second)
	cfg.Power.EnergyHoursPerTick = getEnvFloat("ENERGY_HOURS_PER_TICK", cfg.Power.TickInterval.Hours())
	cfg.Power.RandomSeed = int64(getEnvInt("RANDOM_SEED", 0))
	cfg.Power.TransitionSteps = getEnvInt("TRANSITION_STEPS", 6)

	cfg.Power.SolarCapacityKW = getEnvFloat("SOLAR_CAPACITY_KW", 452.0)
	cfg.Power.GridCapacityKW = getEnvFloat("GRID_CAPACITY_KW", 1000.0)
	cfg.Power.SpikeThresholdKW = getEnvFloat("DEMAND_SPIKE_THRESHOLD_KW", 2.0)
	cfg.Power.GridDownSolarRoomTypes = parseRoomTypes(getEnv("GRID_DOWN_SOLAR_ROOM_TYPES", "classroom,staff"))

	cfg.Power.Cancellation.Threshold = getEnvFloat("CANCELLATION_THRESHOLD", 0.5)
	cfg.Power.Cancellation.MinObservations = getEnvInt("CANCELLATION_MIN_OBSERVATIONS", 7)
	cfg.Power.Cancellation.AnalysisMinSamples = 10
	cfg.Power.Cancellation.RiskyMinScheduled = 5
	cfg.Power.Cancellation.Probabilities = DefaultCancellationProbabilities()
	cfg.Power.Cancellation.DefaultProbability = 0.10

	cfg.Power.LoadProfiles = DefaultLoadProfiles()
	cfg.Power.FallbackRoomType = models.RoomTypeStaff

	cfg.Persistence.BatchSize = getEnvInt("BATCH_SIZE", 100)
	cfg.Persistence.MaxRetries = getEnvInt("COMMIT_MAX_RETRIES", 3)
	cfg.Persistence.InitialBackoff = getEnvDuration("COMMIT_INITIAL_BACKOFF", 100*time.Millisecond)

	cfg.Cache.ModeKeyPrefix = getEnv("CACHE_MODE_PREFIX", "power:mode:")
	cfg.Cache.StateKeyPrefix = getEnv("CACHE_STATE_PREFIX", "power:state:")
	cfg.Cache.ForecastKeyPrefix = getEnv("CACHE_FORECAST_PREFIX", "power:forecast:")
	cfg.Cache.StateTTL = 24 * time.Hour
	cfg.Cache.ForecastTTL = getEnvDuration("FORECAST_CACHE_TTL", 10*time.Minute)
	cfg.Cache.ActionStream = getEnv("ACTION_STREAM", "power:actions")
	cfg.Cache.ActionStreamMaxLen = 10000

	cfg.Forecast.BaseURL = getEnv("FORECAST_BASE_URL", "")
	cfg.Forecast.HorizonMinutes = getEnvInt("FORECAST_HORIZON_MINUTES", 60)
	cfg.Forecast.Timeout = 5 * time.Second
	cfg.Forecast.RetryCount = 2
	cfg.Forecast.TrendWindow = 30

	cfg.GridStatus.Enabled = getEnvBool("MQTT_ENABLED", false)
	cfg.GridStatus.Topic = getEnv("GRID_STATUS_TOPIC", "campus/grid/status")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func parseRoomTypes(raw string) []models.RoomType {
	var out []models.RoomType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, models.RoomType(part))
		}
	}
	return out
}
