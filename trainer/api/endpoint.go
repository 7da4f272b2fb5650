package api

import (
	"context"
	"errors"

	apiutil "github.com/absmach/supermq/api/http/util"
	pkgerrors "github.com/absmach/tuner/pkg/errors"
	"github.com/absmach/tuner/trainer"
	"github.com/go-kit/kit/endpoint"
)

func listRunsEndpoint(svc trainer.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listRunsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listRunsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListRuns(ctx, req.offset, req.limit)
		if err != nil {
			return listRunsResponse{}, err
		}

		return listRunsResponse{
			RunPage: page,
		}, nil
	}
}

func getRunEndpoint(svc trainer.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return runResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return runResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		r, err := svc.GetRun(ctx, req.id)
		if err != nil {
			return runResponse{}, err
		}

		return runResponse{
			Run: r,
		}, nil
	}
}

func getHistoryEndpoint(svc trainer.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return historyResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return historyResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		history, err := svc.GetHistory(ctx, req.id)
		if err != nil {
			return historyResponse{}, err
		}

		return historyResponse{
			RunID:  req.id,
			Series: history.Series(),
			Epochs: history,
		}, nil
	}
}

func previewScheduleEndpoint(svc trainer.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(scheduleReq)
		if !ok {
			return scheduleResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return scheduleResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		preview, err := svc.PreviewSchedule(ctx, req.Config)
		if err != nil {
			return scheduleResponse{}, err
		}

		return scheduleResponse{
			SchedulePreview: preview,
		}, nil
	}
}
