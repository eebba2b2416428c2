package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load builds the Config for workload from defaults, the optional --config
// file and finally the flags that were set explicitly in fs.
func (Loader) Load(workload Workload, fs *pflag.FlagSet) (*Config, error) {
	configPath := ""
	if f := fs.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Defaults(workload)
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadArgs parses args against a fresh flag set for workload and loads the
// resulting Config.
func (l Loader) LoadArgs(workload Workload, args []string) (*Config, error) {
	fs := pflag.NewFlagSet(string(workload), pflag.ContinueOnError)
	configureFlags(fs)
	configureWorkloadFlags(fs, workload)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, ErrHelpRequested
		}
		return nil, err
	}
	return l.Load(workload, fs)
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	// Connection settings may sit at the top level or under "db".
	if raw, ok := lookupSetting(settings, "db"); ok {
		nested, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		if err := applyDBSettings(&cfg.DB, nested); err != nil {
			return fmt.Errorf("db: %w", err)
		}
	}
	if err := applyDBSettings(&cfg.DB, settings); err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "selectcount", "select_count", "select-count"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("selectCount: %w", err)
		}
		cfg.SelectCount = val
	}

	if raw, ok := lookupSetting(settings, "batchsize", "batch_size", "batch-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("batchSize: %w", err)
		}
		cfg.BatchSize = val
	}

	if raw, ok := lookupSetting(settings, "feeder"); ok {
		feeder, err := parseFeeder(raw)
		if err != nil {
			return fmt.Errorf("feeder: %w", err)
		}
		cfg.Feeder = feeder
	}

	if raw, ok := lookupSetting(settings, "concurrency"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("concurrency: %w", err)
		}
		cfg.Concurrency = val
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}

	if raw, ok := lookupSetting(settings, "iterations"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("iterations: %w", err)
		}
		cfg.Iterations = val
	}

	if raw, ok := lookupSetting(settings, "warmup"); ok {
		val, err := asInt64(raw)
		if err != nil {
			return fmt.Errorf("warmup: %w", err)
		}
		cfg.Warmup = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "gracefulshutdown", "graceful_shutdown", "graceful-shutdown"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("gracefulShutdown: %w", err)
		}
		cfg.GracefulShutdown = dur
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		arr, err := parseArrival(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		cfg.Arrival = arr
	} else if raw, ok := lookupSetting(settings, "arrivalmodel", "arrival_model", "arrival-model"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("arrivalModel: %w", err)
		}
		cfg.Arrival.Model = ArrivalModel(normalizeEnum(val))
	}

	if raw, ok := lookupSetting(settings, "quiet"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("quiet: %w", err)
		}
		cfg.Quiet = val
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "outputformat", "output_format", "output-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("outputFormat: %w", err)
		}
		cfg.OutputFormat = OutputFormat(normalizeEnum(val))
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.OutputFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "loglevel", "log_level", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
		cfg.LogLevel = normalizeEnum(val)
	}

	if raw, ok := lookupSetting(settings, "logformat", "log_format", "log-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logFormat: %w", err)
		}
		cfg.LogFormat = normalizeEnum(val)
	}

	if raw, ok := lookupSetting(settings, "metricsaddr", "metrics_addr", "metrics-addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metricsAddr: %w", err)
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func applyDBSettings(db *DBConfig, settings map[string]interface{}) error {
	if raw, ok := lookupSetting(settings, "host"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("host: %w", err)
		}
		db.Host = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "port"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		db.Port = val
	}

	if raw, ok := lookupSetting(settings, "user"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("user: %w", err)
		}
		db.User = val
	}

	if raw, ok := lookupSetting(settings, "password"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("password: %w", err)
		}
		db.Password = val
	}

	// "database" may also hold the nested connection map; only plain values count here.
	if raw, ok := lookupSetting(settings, "database"); ok {
		if _, isMap := raw.(map[string]interface{}); !isMap {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			db.Database = val
		}
	}

	if raw, ok := lookupSetting(settings, "table"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("table: %w", err)
		}
		db.Table = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "txmode", "tx_mode", "tx-mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("txMode: %w", err)
		}
		db.TxMode = TxMode(normalizeEnum(val))
	}

	return nil
}

func parseArrival(value interface{}) (ArrivalConfig, error) {
	var arr ArrivalConfig
	switch v := value.(type) {
	case string:
		arr.Model = ArrivalModel(normalizeEnum(v))
		return arr, nil
	default:
		settings, err := toStringKeyMap(value)
		if err != nil {
			return arr, err
		}
		if raw, ok := lookupSetting(settings, "model"); ok {
			val, err := asString(raw)
			if err != nil {
				return arr, fmt.Errorf("model: %w", err)
			}
			arr.Model = ArrivalModel(normalizeEnum(val))
		}
		return arr, nil
	}
}

func parseFeeder(value interface{}) (FeederConfig, error) {
	var feeder FeederConfig
	settings, err := toStringKeyMap(value)
	if err != nil {
		return feeder, err
	}
	if raw, ok := lookupSetting(settings, "path"); ok {
		val, err := asString(raw)
		if err != nil {
			return feeder, fmt.Errorf("path: %w", err)
		}
		feeder.Path = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return feeder, fmt.Errorf("type: %w", err)
		}
		feeder.Type = normalizeEnum(val)
	}
	return feeder, nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	tracing := base
	settings, err := toStringKeyMap(value)
	if err != nil {
		return tracing, err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return tracing, fmt.Errorf("endpoint: %w", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return tracing, fmt.Errorf("protocol: %w", err)
		}
		tracing.Protocol = normalizeEnum(val)
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return tracing, fmt.Errorf("insecure: %w", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return tracing, fmt.Errorf("sampleRate: %w", err)
		}
		tracing.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return tracing, fmt.Errorf("serviceName: %w", err)
		}
		tracing.ServiceName = val
	}
	return tracing, nil
}
