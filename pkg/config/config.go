// Package config loads the typed configuration a client process starts
// from: cluster topology, per-table sizing, and the ambient concerns
// (logging, telemetry, metrics) carried regardless of what ML workload is
// running on top.
//
// Precedence, highest to lowest: environment variables (PETUUM_*) >
// configuration file (YAML) > defaults applied by ApplyDefaults. Load uses
// its own viper instance and binds no CLI flags. Environment variables
// override only keys the configuration file sets; when no file is found,
// Load returns the defaults alone.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete static configuration for one client process.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`

	// Cluster describes this client's position in the wider deployment:
	// which threads it owns, how many peers exist, and how to reach them.
	Cluster ClusterConfig `mapstructure:"cluster" yaml:"cluster"`

	// Threads sizes the thread pools this process spawns.
	Threads ThreadConfig `mapstructure:"threads" yaml:"threads"`

	// Tables lists the tables to create at startup, keyed by a table name;
	// each entry carries its own table id.
	Tables map[string]TableConfig `mapstructure:"tables" yaml:"tables"`

	// Consistency selects and configures the consistency model.
	Consistency ConsistencyConfig `mapstructure:"consistency" yaml:"consistency"`

	// Server carries options a client passes through to server threads
	// uninterpreted — this process has no server-side logic of its own.
	Server ServerPassthroughConfig `mapstructure:"server" yaml:"server"`

	// Profiling controls continuous Pyroscope profiling of the process.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ClusterConfig fixes a client's identity and its view of the cluster.
type ClusterConfig struct {
	ClientID       int32            `mapstructure:"client_id" validate:"gte=0" yaml:"client_id"`
	NumTotalClients int32           `mapstructure:"num_total_clients" validate:"gt=0" yaml:"num_total_clients"`
	HostMap        map[string]string `mapstructure:"host_map" yaml:"host_map"`
	ServerIDs      []int32          `mapstructure:"server_ids" validate:"required,min=1" yaml:"server_ids"`
	LocalIDMin     int32            `mapstructure:"local_id_min" yaml:"local_id_min"`
	LocalIDMax     int32            `mapstructure:"local_id_max" validate:"gtefield=LocalIDMin" yaml:"local_id_max"`
}

// ThreadConfig sizes the thread pools a client process spawns.
type ThreadConfig struct {
	NumLocalAppThreads   int32 `mapstructure:"num_local_app_threads" validate:"gt=0" yaml:"num_local_app_threads"`
	NumLocalBgThreads    int32 `mapstructure:"num_local_bg_threads" validate:"gt=0" yaml:"num_local_bg_threads"`
	NumTotalBgThreads    int32 `mapstructure:"num_total_bg_threads" validate:"gt=0" yaml:"num_total_bg_threads"`
	NumLocalServerThreads int32 `mapstructure:"num_local_server_threads" yaml:"num_local_server_threads"`
	NumTotalServerThreads int32 `mapstructure:"num_total_server_threads" yaml:"num_total_server_threads"`
}

// TableConfig describes one table to create at startup.
type TableConfig struct {
	TableID     int32 `mapstructure:"table_id" yaml:"table_id"`
	Staleness   int32 `mapstructure:"staleness" validate:"gte=0" yaml:"staleness"`
	NumColumns  int   `mapstructure:"num_columns" validate:"gt=0" yaml:"num_columns"`
	Capacity    int   `mapstructure:"capacity" validate:"gt=0" yaml:"capacity"`
	LockStripes int   `mapstructure:"lock_stripes" validate:"gt=0" yaml:"lock_stripes"`
}

// ConsistencyConfig selects the consistency model and its tick policy.
type ConsistencyConfig struct {
	// Model selects the consistency model. SSP is the only model this
	// repository implements; the field exists so config files name their
	// intent explicitly rather than relying on an implicit default.
	Model string `mapstructure:"consistency_model" validate:"required,oneof=SSP" yaml:"consistency_model"`

	// AggressiveClock selects the Aggressive tick policy (send oplogs on
	// every tick) over Conservative (only on a boundary crossing).
	AggressiveClock bool `mapstructure:"aggressive_clock" yaml:"aggressive_clock"`
}

// ServerPassthroughConfig carries server-side knobs this process never
// interprets itself, forwarded at connection time.
type ServerPassthroughConfig struct {
	ServerRingSize int    `mapstructure:"server_ring_size" yaml:"server_ring_size"`
	SnapshotClock  int32  `mapstructure:"snapshot_clock" yaml:"snapshot_clock"`
	ResumeClock    int32  `mapstructure:"resume_clock" yaml:"resume_clock"`
	SnapshotDir    string `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
}

// LoggingConfig controls internal/logger's behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing, mirrored from
// internal/telemetry.Config.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
}

// MetricsConfig controls whether pkg/metrics collects and serves
// Prometheus samples.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ProfilingConfig mirrors internal/telemetry.ProfilingConfig.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

var validate = validator.New()

// Load reads configuration from configPath (or the default search path if
// empty), layering environment variables and defaults on top, then
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
			return nil, fmt.Errorf("config: unmarshal: %w", err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	for name, table := range cfg.Tables {
		if err := validate.Struct(table); err != nil {
			return fmt.Errorf("table %q: %w", name, err)
		}
	}
	return nil
}

// SaveConfig writes cfg to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("PETUUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(".")
	v.SetConfigName("petuumclient")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

// durationDecodeHook lets config files write human-readable durations like
// "30s" for any time.Duration field.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
