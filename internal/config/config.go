package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by SYNAPSE_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("SYNAPSE_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// StorageDriver returns the configured storage backend.
// Defaults to "postgres" when DATABASE_URL is set, "sqlite" otherwise.
// Valid values: postgres, sqlite
func StorageDriver() string {
	d := os.Getenv("STORAGE_DRIVER")
	if d != "" {
		return d
	}
	if DatabaseURL() != "" {
		return "postgres"
	}
	return "sqlite"
}

func SQLitePath() string {
	p := os.Getenv("SQLITE_PATH")
	if p == "" {
		return "data/synapse.db"
	}
	return p
}

// TuningFile returns the optional YAML file with engine parameters.
func TuningFile() string {
	return os.Getenv("TUNING_FILE")
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// HebbianLearningRate returns eta for the Hebbian update.
// Defaults to 0.1 if not set.
func HebbianLearningRate() float64 {
	return floatEnv("HEBBIAN_LEARNING_RATE", 0.1)
}

// HebbianWindow returns the co-occurrence window.
// Defaults to 5m if not set.
func HebbianWindow() time.Duration {
	return durationEnv("HEBBIAN_WINDOW", 5*time.Minute)
}

func LinkDecayRate() float64 {
	return floatEnv("LINK_DECAY_RATE", 0.01)
}

func ActivationDecayRate() float64 {
	return floatEnv("ACTIVATION_DECAY_RATE", 0.1)
}

func PruneThreshold() float64 {
	return floatEnv("PRUNE_THRESHOLD", 0.05)
}

// AccessRetentionDays returns how long access events are kept.
// Defaults to 30 if not set.
func AccessRetentionDays() int {
	days, err := strconv.Atoi(os.Getenv("ACCESS_RETENTION_DAYS"))
	if err != nil || days < 0 {
		return 30
	}
	return days
}

func MaintenanceInterval() time.Duration {
	return durationEnv("MAINTENANCE_INTERVAL", time.Hour)
}

// MaintenanceProjectsPerSecond paces the maintenance sweep.
// Defaults to 10 if not set.
func MaintenanceProjectsPerSecond() float64 {
	return floatEnv("MAINTENANCE_PROJECTS_PER_SECOND", 10)
}

func BreakerMaxFailures() uint32 {
	n, err := strconv.ParseUint(os.Getenv("BREAKER_MAX_FAILURES"), 10, 32)
	if err != nil || n == 0 {
		return 3
	}
	return uint32(n)
}

func BreakerTimeout() time.Duration {
	return durationEnv("BREAKER_TIMEOUT", 30*time.Second)
}

func floatEnv(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d < 0 {
		return def
	}
	return d
}
