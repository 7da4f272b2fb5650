// Package tunerd holds the commands that run the fine-tuning service in
// process: training, serving the API, writing config and pushing models.
package tunerd

import (
	"context"
	"log/slog"

	"github.com/absmach/tuner"
	"github.com/absmach/tuner/pkg/server"
	httpserver "github.com/absmach/tuner/pkg/server/http"
	"github.com/absmach/tuner/trainer/api"
	"golang.org/x/sync/errgroup"
)

var ConfigPath = tuner.DefConfigPath

type job func(ctx context.Context) error

// start loads the configuration and wires the runtime.
func start(ctx context.Context) (tuner.Config, *tuner.Runtime, *slog.Logger, error) {
	cfg, err := tuner.LoadConfig(ConfigPath)
	if err != nil {
		return tuner.Config{}, nil, nil, err
	}

	logger, err := tuner.NewLogger(cfg.LogLevel)
	if err != nil {
		return tuner.Config{}, nil, nil, err
	}

	rt, err := tuner.NewRuntime(ctx, cfg, logger)
	if err != nil {
		return tuner.Config{}, nil, nil, err
	}

	return cfg, rt, logger, nil
}

// serve runs the HTTP API next to jobs until a signal arrives, the server
// fails or a job returns.
func serve(ctx context.Context, cancel context.CancelFunc, cfg tuner.Config, rt *tuner.Runtime, logger *slog.Logger, jobs ...job) error {
	g, ctx := errgroup.WithContext(ctx)

	hs := httpserver.NewServer(ctx, cancel, tuner.SvcName, cfg.Server, api.MakeHandler(rt.Service, logger, rt.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, tuner.SvcName, hs)
	})

	for _, j := range jobs {
		g.Go(func() error {
			defer cancel()

			return j(ctx)
		})
	}

	return g.Wait()
}
