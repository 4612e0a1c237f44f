package config

import "time"

type AppConfig struct {
	DBDriver    string          `yaml:"db_driver" env:"AERIA_DB_DRIVER" env-default:"sqlite"`
	DBURL       string          `yaml:"db_url" env:"AERIA_DB_URL"`
	DBPath      string          `yaml:"db_path" env:"AERIA_DB_PATH" env-default:"data/aeria.db"`
	ListenAddr  string          `yaml:"listen_addr" env:"AERIA_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	AppEnv      string          `yaml:"app_env" env:"AERIA_APP_ENV"`
	LogLevel    string          `yaml:"log_level" env:"AERIA_LOG_LEVEL" env-default:"info"`
	Incidents   IncidentsConfig `yaml:"incidents"`
	CAPAs       CAPAsConfig     `yaml:"capas"`
	Safety      SafetyConfig    `yaml:"safety"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	HTTPTimeout time.Duration   `yaml:"http_timeout" env:"AERIA_HTTP_TIMEOUT" env-default:"30s"`
}

type IncidentsConfig struct {
	RegNoFormat string `yaml:"reg_no_format" env:"AERIA_INCIDENTS_REG_NO_FORMAT" env-default:"INC-{year}-{seq:04}"`
}

type CAPAsConfig struct {
	RegNoFormat string `yaml:"reg_no_format" env:"AERIA_CAPAS_REG_NO_FORMAT" env-default:"CAPA-{year}-{seq:04}"`

	// Default resolution windows in days, applied when a CAPA is created
	// without an explicit target date.
	CriticalWindowDays int `yaml:"critical_window_days" env:"AERIA_CAPAS_CRITICAL_WINDOW_DAYS" env-default:"1"`
	HighWindowDays     int `yaml:"high_window_days" env:"AERIA_CAPAS_HIGH_WINDOW_DAYS" env-default:"7"`
	MediumWindowDays   int `yaml:"medium_window_days" env:"AERIA_CAPAS_MEDIUM_WINDOW_DAYS" env-default:"14"`
	LowWindowDays      int `yaml:"low_window_days" env:"AERIA_CAPAS_LOW_WINDOW_DAYS" env-default:"30"`
}

type SafetyConfig struct {
	// DefaultHoursWorked backs TRIR/LTIFR requests that do not supply an
	// hours-worked figure. Zero means no fallback.
	DefaultHoursWorked float64 `yaml:"default_hours_worked" env:"AERIA_SAFETY_DEFAULT_HOURS_WORKED" env-default:"0"`
	SnapshotSpec       string  `yaml:"snapshot_spec" env:"AERIA_SAFETY_SNAPSHOT_SPEC" env-default:"0 6 * * *"`
}

type SchedulerConfig struct {
	Enabled bool `yaml:"enabled" env:"AERIA_SCHEDULER_ENABLED" env-default:"true"`
}

// TargetWindowDays maps a CAPA priority to its configured resolution window.
// Unknown priorities get the low window.
func (c CAPAsConfig) TargetWindowDays(priority string) int {
	switch priority {
	case "critical":
		return c.CriticalWindowDays
	case "high":
		return c.HighWindowDays
	case "medium":
		return c.MediumWindowDays
	default:
		return c.LowWindowDays
	}
}
