package config

// ApplyDefaults fills any zero-valued field left after loading a config
// file and environment variables. Called by Load before Validate.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyClusterDefaults(&cfg.Cluster)
	applyThreadDefaults(&cfg.Threads)
	applyConsistencyDefaults(&cfg.Consistency)
	applyProfilingDefaults(&cfg.Profiling)

	// No defaults for Tables: at least one table is the caller's
	// responsibility to declare.
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "petuumclient"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyClusterDefaults(cfg *ClusterConfig) {
	if cfg.NumTotalClients == 0 {
		cfg.NumTotalClients = 1
	}
	if cfg.LocalIDMax == 0 {
		cfg.LocalIDMax = 1000
	}
	if len(cfg.ServerIDs) == 0 {
		cfg.ServerIDs = []int32{0}
	}
}

func applyThreadDefaults(cfg *ThreadConfig) {
	if cfg.NumLocalAppThreads == 0 {
		cfg.NumLocalAppThreads = 1
	}
	if cfg.NumLocalBgThreads == 0 {
		cfg.NumLocalBgThreads = 1
	}
	if cfg.NumTotalBgThreads == 0 {
		cfg.NumTotalBgThreads = cfg.NumLocalBgThreads
	}
}

func applyConsistencyDefaults(cfg *ConsistencyConfig) {
	if cfg.Model == "" {
		cfg.Model = "SSP"
	}
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "goroutines"}
	}
}

// GetDefaultConfig returns a Config populated entirely from defaults, for
// callers that want to run without a config file.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Cluster: ClusterConfig{ServerIDs: []int32{0}},
		Tables: map[string]TableConfig{
			"default": {TableID: 0, Staleness: 0, NumColumns: 1, Capacity: 1024, LockStripes: 256},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
