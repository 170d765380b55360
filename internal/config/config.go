package config

import (
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/battmon/internal/alert"
	"codeberg.org/mutker/battmon/internal/errors"
)

// Mode selects the sampling cadence profile.
type Mode string

const (
	ModeSaver       Mode = "saver"
	ModeBalanced    Mode = "balanced"
	ModePerformance Mode = "performance"
)

// IsValid returns whether the mode is a known cadence profile.
func (m Mode) IsValid() bool {
	switch m {
	case ModeSaver, ModeBalanced, ModePerformance:
		return true
	default:
		return false
	}
}

func (m Mode) String() string {
	return string(m)
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

func (l LogLevel) String() string {
	return string(l)
}

const (
	DefaultMode            = ModeBalanced
	DefaultLogLevel        = "warning"
	DefaultDatabase        = "/var/lib/battmon/battmon.db"
	DefaultHistoryCapacity = 720
)

// Thresholds mirrors the alert limits as they appear in the config file.
type Thresholds struct {
	CriticalPercent       float64 `mapstructure:"critical_percent"`
	LowPercent            float64 `mapstructure:"low_percent"`
	RapidDrainPerMinute   float64 `mapstructure:"rapid_drain_per_minute"`
	HighTemperatureC      float64 `mapstructure:"high_temperature_c"`
	HealthCapacityPercent float64 `mapstructure:"health_capacity_percent"`
	CycleCountLimit       int     `mapstructure:"cycle_count_limit"`
}

type Config struct {
	Mode            string     `mapstructure:"mode"`
	LogLevel        string     `mapstructure:"log_level"`
	Debug           bool       `mapstructure:"debug"`
	Verbose         bool       `mapstructure:"verbose"`
	Persistence     bool       `mapstructure:"persistence"`
	Database        string     `mapstructure:"database"`
	HistoryCapacity int        `mapstructure:"history_capacity"`
	Thresholds      Thresholds `mapstructure:"thresholds"`
}

// AlertThresholds converts the file representation into the engine's
// threshold set.
func (c *Config) AlertThresholds() alert.Thresholds {
	return alert.Thresholds{
		CriticalPercent:       c.Thresholds.CriticalPercent,
		LowPercent:            c.Thresholds.LowPercent,
		RapidDrainPerMinute:   c.Thresholds.RapidDrainPerMinute,
		HighTemperatureC:      c.Thresholds.HighTemperatureC,
		HealthCapacityPercent: c.Thresholds.HealthCapacityPercent,
		CycleCountLimit:       c.Thresholds.CycleCountLimit,
	}
}

// Load reads configuration from flags, the BATTMON_CONFIG file (or
// /etc/battmon/battmon.toml), and environment variables, then validates it.
func Load() (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet("battmon", pflag.ContinueOnError)
	configFile := fs.String("config", "", "Path to configuration file")
	fs.String("mode", "", "Operating mode (saver, balanced, performance)")
	fs.String("log-level", "", "Log level (debug, info, warning, error)")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Bool("persistence", true, "Enable persistent storage")
	fs.String("database", "", "Path to the database file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(ErrReadConfigFile, err)
	}

	bindFlag(v, "mode", fs, "mode")
	bindFlag(v, "log_level", fs, "log-level")
	bindFlag(v, "debug", fs, "debug")
	bindFlag(v, "verbose", fs, "verbose")
	bindFlag(v, "persistence", fs, "persistence")
	bindFlag(v, "database", fs, "database")

	if *configFile == "" {
		*configFile = os.Getenv("BATTMON_CONFIG")
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
	} else {
		v.SetConfigName("battmon")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/battmon")
		v.AddConfigPath("$HOME/.config/battmon")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(ErrReadConfigFile, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(ErrUnmarshalConfig, err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	// Debug/verbose flags shortcut the log level, matching the daemon's
	// long-standing CLI behavior.
	if config.Debug {
		config.LogLevel = string(LogLevelDebug)
	} else if config.Verbose && config.LogLevel == DefaultLogLevel {
		config.LogLevel = string(LogLevelInfo)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(DefaultMode))
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("persistence", true)
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("history_capacity", DefaultHistoryCapacity)

	defaults := alert.DefaultThresholds()
	v.SetDefault("thresholds.critical_percent", defaults.CriticalPercent)
	v.SetDefault("thresholds.low_percent", defaults.LowPercent)
	v.SetDefault("thresholds.rapid_drain_per_minute", defaults.RapidDrainPerMinute)
	v.SetDefault("thresholds.high_temperature_c", defaults.HighTemperatureC)
	v.SetDefault("thresholds.health_capacity_percent", defaults.HealthCapacityPercent)
	v.SetDefault("thresholds.cycle_count_limit", defaults.CycleCountLimit)
}

// bindFlag binds a changed flag to its config key. Unchanged flags stay
// below file and env values in precedence.
func bindFlag(v *viper.Viper, key string, fs *pflag.FlagSet, name string) {
	if f := fs.Lookup(name); f != nil && f.Changed {
		v.Set(key, f.Value.String())
	}
}

func (c *Config) validate() error {
	errFactory := errors.New()

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(ErrInvalidLogLevel, c.LogLevel)
	}
	if !Mode(c.Mode).IsValid() {
		return errFactory.WithData(ErrInvalidMode, c.Mode)
	}
	if c.HistoryCapacity <= 0 {
		return errFactory.WithData(ErrInvalidCapacity, c.HistoryCapacity)
	}

	return c.AlertThresholds().Validate()
}
