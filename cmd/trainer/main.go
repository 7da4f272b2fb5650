package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"

	"github.com/absmach/tuner"
	"github.com/absmach/tuner/pkg/server"
	httpserver "github.com/absmach/tuner/pkg/server/http"
	"github.com/absmach/tuner/trainer"
	"github.com/absmach/tuner/trainer/api"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	pathEnv   = ".env"
	configEnv = "TUNER_CONFIG"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <archive>\n", os.Args[0])
		os.Exit(2)
	}

	os.Exit(run(os.Args[1]))
}

func run(archivePath string) int {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if err := loadEnv(pathEnv); err != nil {
		log.Printf("failed to load %s: %s", pathEnv, err)
	}

	cfg, err := tuner.LoadConfig(os.Getenv(configEnv))
	if err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	logger, err := tuner.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}

	rt, err := tuner.NewRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize runtime", slog.Any("error", err))

		return 1
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			logger.Error("error closing runtime", slog.Any("error", err))
		}
	}()

	hs := httpserver.NewServer(ctx, cancel, tuner.SvcName, cfg.Server, api.MakeHandler(rt.Service, logger, rt.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, tuner.SvcName, hs)
	})

	var r trainer.Run
	g.Go(func() error {
		defer cancel()

		var err error
		r, err = rt.Service.Train(ctx, archivePath, cfg.Run)

		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s training exited with error: %s", tuner.SvcName, err), slog.String("run_id", r.ID))

		return 1
	}

	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		logger.Error("failed to encode run", slog.Any("error", err))

		return 1
	}
	fmt.Println(string(out))

	return 0
}

// loadEnv loads path into the environment. A missing file is not an error.
func loadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return err
	}

	return godotenv.Load(path)
}
