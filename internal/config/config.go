// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for the frontend, worker and demo processes.
// The mapstructure tags are used by Viper to unmarshal the data.
type Config struct {
	EtcdEndpoints []string      `mapstructure:"etcd_endpoints" validate:"required,min=1,dive,required"`
	EtcdTimeout   time.Duration `mapstructure:"etcd_timeout" validate:"gt=0s"`
	WatchRetry    time.Duration `mapstructure:"watch_retry" validate:"gt=0s"`
	ServiceKey    string        `mapstructure:"service_key" validate:"required,excludes=/"`

	TickInterval time.Duration `mapstructure:"tick_interval" validate:"gte=1s"`
	JobTimeout   time.Duration `mapstructure:"job_timeout" validate:"gt=0s"`
	JobIDLower   int           `mapstructure:"job_id_lower" validate:"gte=0"`
	JobIDUpper   int           `mapstructure:"job_id_upper" validate:"gtfield=JobIDLower"`

	HttpListenAddr string `mapstructure:"http_listen_addr" validate:"required"`
	GrpcListenAddr string `mapstructure:"grpc_listen_addr" validate:"required"`
	AdvertiseAddr  string `mapstructure:"advertise_addr"`

	RegistrationTTL   time.Duration `mapstructure:"registration_ttl" validate:"gte=1s"`
	RegistrationRetry time.Duration `mapstructure:"registration_retry" validate:"gt=0s"`

	LeaderElection      bool          `mapstructure:"leader_election"`
	LeaderElectionTTL   time.Duration `mapstructure:"leader_election_ttl" validate:"gte=1s"`
	LeaderElectionRetry time.Duration `mapstructure:"leader_election_retry" validate:"gt=0s"`

	ProcessingDelay time.Duration `mapstructure:"processing_delay" validate:"gte=0s"`
	TraceStdout     bool          `mapstructure:"trace_stdout"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	DemoWorkers     int           `mapstructure:"demo_workers" validate:"gte=1,lte=32"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("etcd_endpoints", []string{"localhost:2379"})
	v.SetDefault("etcd_timeout", "5s")
	v.SetDefault("watch_retry", "1s")
	v.SetDefault("service_key", "transform-worker")
	v.SetDefault("tick_interval", "15s")
	v.SetDefault("job_timeout", "10s")
	v.SetDefault("job_id_lower", 10)
	v.SetDefault("job_id_upper", 1000)
	v.SetDefault("http_listen_addr", ":8080")
	v.SetDefault("grpc_listen_addr", ":50052")
	v.SetDefault("advertise_addr", "")
	v.SetDefault("registration_ttl", "10s")
	v.SetDefault("registration_retry", "2s")
	v.SetDefault("leader_election", false)
	v.SetDefault("leader_election_ttl", "10s")
	v.SetDefault("leader_election_retry", "5s")
	v.SetDefault("processing_delay", "0s")
	v.SetDefault("trace_stdout", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("demo_workers", 3)
}

// Load loads configuration from defaults, an optional config file, environment
// variables and command-line flags, in increasing order of precedence.
// An empty configFile means "look for config.yaml in ./configs or the working directory".
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")    // name of config file (without extension)
		v.SetConfigType("yaml")      // or "json", "toml"
		v.AddConfigPath("./configs") // path to look for the config file in
		v.AddConfigPath(".")         // optionally look for config in the working directory
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		// Flags are spelled --job-timeout, keys job_timeout.
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file; defaults, env vars and flags are enough.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints declared in the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WorkerAddr is the address a worker publishes in discovery. When
// advertise_addr is unset, the gRPC listen port on localhost is used.
func (c *Config) WorkerAddr() string {
	if c.AdvertiseAddr != "" {
		return c.AdvertiseAddr
	}
	host, port, err := net.SplitHostPort(c.GrpcListenAddr)
	if err != nil {
		return c.GrpcListenAddr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}

// SlogLevel maps log_level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
