package api

import (
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/absmach/tuner/pkg/api"
	"github.com/absmach/tuner/pkg/schedule"
)

// maxPreviewSteps bounds the size of a schedule preview response.
const maxPreviewSteps = 1_000_000

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	if e.limit > api.MaxLimitSize {
		return apiutil.ErrLimitSize
	}

	return nil
}

type scheduleReq struct {
	schedule.Config
}

func (s *scheduleReq) validate() error {
	if s.TotalSteps > maxPreviewSteps {
		return apiutil.ErrLimitSize
	}

	return nil
}
