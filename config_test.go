package tuner_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/tuner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fileConfig = `
log_level = "debug"

[run]
epochs = 3
batch_size = 16
exclude = ["unsup", "extra"]

[storage]
type = "sqlite"
sqlite_path = "/tmp/runs.db"

[server]
port = "9090"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tuner.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig(t *testing.T) {
	cases := []struct {
		desc   string
		path   func(t *testing.T) string
		env    map[string]string
		err    bool
		verify func(t *testing.T, cfg tuner.Config)
	}{
		{
			desc: "defaults when the default file is missing",
			path: func(*testing.T) string { return "" },
			verify: func(t *testing.T, cfg tuner.Config) {
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, 5, cfg.Run.Epochs)
				assert.Equal(t, 32, cfg.Run.BatchSize)
				assert.Equal(t, "memory", cfg.Storage.Type)
				assert.Equal(t, tuner.DefHTTPPort, cfg.Server.Port)
			},
		},
		{
			desc: "file overrides defaults",
			path: func(t *testing.T) string { return writeConfig(t, fileConfig) },
			verify: func(t *testing.T, cfg tuner.Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, 3, cfg.Run.Epochs)
				assert.Equal(t, 16, cfg.Run.BatchSize)
				assert.Equal(t, []string{"unsup", "extra"}, cfg.Run.Exclude)
				assert.InDelta(t, 3e-5, cfg.Run.PeakLearningRate, 1e-12)
				assert.Equal(t, "sqlite", cfg.Storage.Type)
				assert.Equal(t, "/tmp/runs.db", cfg.Storage.SQLitePath)
				assert.Equal(t, "9090", cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Server.Host)
			},
		},
		{
			desc: "environment overrides file",
			path: func(t *testing.T) string { return writeConfig(t, fileConfig) },
			env: map[string]string{
				"TUNER_EPOCHS":       "7",
				"TUNER_STORAGE_TYPE": "badger",
				"TUNER_HTTP_PORT":    "8181",
			},
			verify: func(t *testing.T, cfg tuner.Config) {
				assert.Equal(t, 7, cfg.Run.Epochs)
				assert.Equal(t, 16, cfg.Run.BatchSize)
				assert.Equal(t, "badger", cfg.Storage.Type)
				assert.Equal(t, "8181", cfg.Server.Port)
			},
		},
		{
			desc: "explicit zero in file is kept",
			path: func(t *testing.T) string { return writeConfig(t, "[run]\nworkers = 0\ndropout = 0.0\n") },
			verify: func(t *testing.T, cfg tuner.Config) {
				assert.Equal(t, 0, cfg.Run.Workers)
				assert.Zero(t, cfg.Run.Dropout)
				assert.Equal(t, 5, cfg.Run.Epochs)
			},
		},
		{
			desc: "environment overrides defaults without a file",
			path: func(*testing.T) string { return "" },
			env: map[string]string{
				"TUNER_PEAK_LEARNING_RATE": "0.001",
				"TUNER_EXCLUDE":            "unsup,extra",
			},
			verify: func(t *testing.T, cfg tuner.Config) {
				assert.InDelta(t, 0.001, cfg.Run.PeakLearningRate, 1e-12)
				assert.Equal(t, []string{"unsup", "extra"}, cfg.Run.Exclude)
				assert.Equal(t, 32, cfg.Run.BatchSize)
			},
		},
		{
			desc: "missing explicit file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.toml") },
			err:  true,
		},
		{
			desc: "malformed file",
			path: func(t *testing.T) string { return writeConfig(t, "[run\nepochs = ") },
			err:  true,
		},
		{
			desc: "malformed environment",
			path: func(*testing.T) string { return "" },
			env:  map[string]string{"TUNER_EPOCHS": "many"},
			err:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := tuner.LoadConfig(tc.path(t))
			if tc.err {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)
			tc.verify(t, cfg)
		})
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuner.toml")

	cfg := tuner.DefaultConfig()
	cfg.LogLevel = "warn"
	cfg.Run.Epochs = 2
	cfg.Storage.Type = "postgres"

	require.NoError(t, tuner.WriteFile(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `log_level = "warn"`)
	assert.Contains(t, string(data), `type = "postgres"`)
	assert.Contains(t, string(data), "epochs = 2")
}
