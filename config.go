package tuner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/absmach/tuner/pkg/hub"
	"github.com/absmach/tuner/pkg/mqtt"
	"github.com/absmach/tuner/pkg/run"
	"github.com/absmach/tuner/pkg/server"
	"github.com/absmach/tuner/pkg/storage"
	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml"
)

const (
	DefConfigPath = "tuner.toml"
	DefHTTPPort   = "7070"
)

type Config struct {
	LogLevel   string  `env:"TUNER_LOG_LEVEL" toml:"log_level"`
	InstanceID string  `env:"TUNER_INSTANCE_ID" toml:"instance_id"`
	OTELURL    string  `env:"TUNER_OTEL_URL" toml:"otel_url"`
	TraceRatio float64 `env:"TUNER_TRACE_RATIO" toml:"trace_ratio"`

	Run     run.Config     `toml:"run"     envPrefix:"TUNER_"`
	Storage storage.Config `toml:"storage"`
	MQTT    mqtt.Config    `toml:"mqtt"`
	Hub     hub.Config     `toml:"hub"     envPrefix:"TUNER_HUB_"`
	Server  server.Config  `toml:"server"  envPrefix:"TUNER_HTTP_"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Run:      run.DefaultConfig(),
		Storage: storage.Config{
			Type:            "memory",
			PostgresHost:    "localhost",
			PostgresPort:    "5432",
			PostgresUser:    "tuner",
			PostgresPass:    "tuner",
			PostgresDB:      "tuner",
			PostgresSSLMode: "disable",
			SQLitePath:      "./tuner.db",
			BadgerPath:      "./data/badger",
		},
		MQTT: mqtt.Config{
			QoS:     1,
			Timeout: mqtt.DefTimeout,
		},
		Server: server.Config{
			Host: "localhost",
			Port: DefHTTPPort,
		},
	}
}

// LoadConfig layers a TOML file and then the environment over the
// defaults. Unset variables keep the file or default value. A missing file
// is not an error when path is the default path.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefConfigPath
	}
	err := ReadFile(path, &cfg)
	switch {
	case errors.Is(err, fs.ErrNotExist) && path == DefConfigPath:
	case err != nil:
		return Config{}, err
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing environment: %w", err)
	}

	return cfg, nil
}

// ReadFile unmarshals the TOML file at path over cfg; keys absent from the
// file keep their current values.
func ReadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	if err := tree.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	return nil
}

func WriteFile(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
