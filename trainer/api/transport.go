package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/absmach/tuner/pkg/api"
	"github.com/absmach/tuner/pkg/schedule"
	"github.com/absmach/tuner/trainer"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	peakKey        = "peak"
	totalStepsKey  = "total_steps"
	warmupStepsKey = "warmup_steps"

	defPeak = 3e-5
)

func MakeHandler(svc trainer.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Route("/runs", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listRunsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-runs").ServeHTTP)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getRunEndpoint(svc),
				decodeEntityReq("runID"),
				api.EncodeResponse,
				opts...,
			), "get-run").ServeHTTP)
			r.Get("/history", otelhttp.NewHandler(kithttp.NewServer(
				getHistoryEndpoint(svc),
				decodeEntityReq("runID"),
				api.EncodeResponse,
				opts...,
			), "get-history").ServeHTTP)
		})
	})

	mux.Get("/schedule", otelhttp.NewHandler(kithttp.NewServer(
		previewScheduleEndpoint(svc),
		decodeScheduleReq,
		api.EncodeResponse,
		opts...,
	), "preview-schedule").ServeHTTP)

	mux.Get("/health", supermq.Health("tuner", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeScheduleReq(_ context.Context, r *http.Request) (any, error) {
	peak, err := apiutil.ReadNumQuery[float64](r, peakKey, defPeak)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	total, err := apiutil.ReadNumQuery[uint64](r, totalStepsKey, 0)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	warmup, err := apiutil.ReadNumQuery[uint64](r, warmupStepsKey, 0)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}
	if total > maxPreviewSteps || warmup > maxPreviewSteps {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrLimitSize)
	}

	return scheduleReq{
		Config: schedule.Config{
			PeakLearningRate: peak,
			TotalSteps:       int(total),
			WarmupSteps:      int(warmup),
		},
	}, nil
}
