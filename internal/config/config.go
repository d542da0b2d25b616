package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "tetrad.cfg.json"

// StorageConfig holds the row stream settings.
type StorageConfig struct {
	CompressionLevel       int `json:"compressionLevel" mapstructure:"compressionLevel"`
	Precision              int `json:"precision" mapstructure:"precision"`
	MaxConsecutiveFailures int `json:"maxConsecutiveFailures" mapstructure:"maxConsecutiveFailures"`
}

// MonitorConfig holds rolling monitor settings.
type MonitorConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ReportInterval time.Duration `json:"reportInterval" mapstructure:"reportInterval"`
	StallThreshold time.Duration `json:"stallThreshold" mapstructure:"stallThreshold"`
	StatsFile      bool          `json:"statsFile" mapstructure:"statsFile"`
	Database       bool          `json:"database" mapstructure:"database"`
}

// StatusConfig holds the status file consumer settings.
type StatusConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// SessionConfig is the immutable configuration handed to a session.
type SessionConfig struct {
	WriteDir           string
	LogLevel           string
	Debug              bool
	EnableObjectLog    bool
	EnableFramerateLog bool
	Storage            StorageConfig
	Monitor            MonitorConfig
	Status             StatusConfig
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// SetDefaults registers every default value. Load calls it; it is exported
// so callers that skip the config file still get a complete configuration.
func SetDefaults() {
	viper.SetDefault("writeDir", ".")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("debug", false)

	viper.SetDefault("enableObjectLog", false)
	viper.SetDefault("enableFramerateLog", true)

	viper.SetDefault("storage.compressionLevel", 10)
	viper.SetDefault("storage.precision", 8)
	viper.SetDefault("storage.maxConsecutiveFailures", 0)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.reportInterval", "5s")
	viper.SetDefault("monitor.stallThreshold", "100ms")
	viper.SetDefault("monitor.statsFile.enabled", false)
	viper.SetDefault("monitor.database.enabled", false)

	viper.SetDefault("status.enabled", false)
	viper.SetDefault("status.interval", "-1s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "tetrad")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
// Environment variables prefixed TETRAD_ override file values,
// e.g. TETRAD_MONITOR_REPORTINTERVAL=10s.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix("TETRAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// IsNotFound reports whether err means the config file does not exist.
func IsNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSessionConfig snapshots the current configuration.
func GetSessionConfig() SessionConfig {
	return SessionConfig{
		WriteDir:           viper.GetString("writeDir"),
		LogLevel:           viper.GetString("logLevel"),
		Debug:              viper.GetBool("debug"),
		EnableObjectLog:    viper.GetBool("enableObjectLog"),
		EnableFramerateLog: viper.GetBool("enableFramerateLog"),
		Storage: StorageConfig{
			CompressionLevel:       viper.GetInt("storage.compressionLevel"),
			Precision:              viper.GetInt("storage.precision"),
			MaxConsecutiveFailures: viper.GetInt("storage.maxConsecutiveFailures"),
		},
		Monitor: MonitorConfig{
			Enabled:        viper.GetBool("monitor.enabled"),
			ReportInterval: viper.GetDuration("monitor.reportInterval"),
			StallThreshold: viper.GetDuration("monitor.stallThreshold"),
			StatsFile:      viper.GetBool("monitor.statsFile.enabled"),
			Database:       viper.GetBool("monitor.database.enabled"),
		},
		Status: StatusConfig{
			Enabled:  viper.GetBool("status.enabled"),
			Interval: viper.GetDuration("status.interval"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// Validate checks values that would otherwise fail deep inside a session.
func (c SessionConfig) Validate() error {
	var errs []error
	if c.WriteDir == "" {
		errs = append(errs, errors.New("writeDir must not be empty"))
	}
	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 22 {
		errs = append(errs, fmt.Errorf("storage.compressionLevel %d out of range 1-22", c.Storage.CompressionLevel))
	}
	if c.Storage.Precision < 0 || c.Storage.Precision > 17 {
		errs = append(errs, fmt.Errorf("storage.precision %d out of range 0-17", c.Storage.Precision))
	}
	if c.Storage.MaxConsecutiveFailures < 0 {
		errs = append(errs, errors.New("storage.maxConsecutiveFailures must not be negative"))
	}
	if c.Monitor.Enabled && c.Monitor.ReportInterval <= 0 {
		errs = append(errs, errors.New("monitor.reportInterval must be positive"))
	}
	return errors.Join(errs...)
}

// Default returns the configuration produced by the defaults alone,
// with files written below writeDir.
func Default(writeDir string) SessionConfig {
	return SessionConfig{
		WriteDir:           writeDir,
		LogLevel:           "info",
		EnableFramerateLog: true,
		Storage: StorageConfig{
			CompressionLevel: 10,
			Precision:        8,
		},
		Monitor: MonitorConfig{
			Enabled:        true,
			ReportInterval: 5 * time.Second,
			StallThreshold: 100 * time.Millisecond,
		},
		Status: StatusConfig{
			Interval: -time.Second,
		},
	}
}
