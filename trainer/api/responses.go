package api

import (
	"net/http"

	"github.com/absmach/supermq"
	"github.com/absmach/tuner/trainer"
)

var (
	_ supermq.Response = (*runResponse)(nil)
	_ supermq.Response = (*listRunsResponse)(nil)
	_ supermq.Response = (*historyResponse)(nil)
	_ supermq.Response = (*scheduleResponse)(nil)
)

type runResponse struct {
	trainer.Run
}

func (r runResponse) Code() int {
	return http.StatusOK
}

func (r runResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r runResponse) Empty() bool {
	return false
}

type listRunsResponse struct {
	trainer.RunPage
}

func (l listRunsResponse) Code() int {
	return http.StatusOK
}

func (l listRunsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listRunsResponse) Empty() bool {
	return false
}

type historyResponse struct {
	RunID  string               `json:"run_id"`
	Series map[string][]float64 `json:"history"`
	Epochs trainer.History      `json:"epochs"`
}

func (h historyResponse) Code() int {
	return http.StatusOK
}

func (h historyResponse) Headers() map[string]string {
	return map[string]string{}
}

func (h historyResponse) Empty() bool {
	return false
}

type scheduleResponse struct {
	trainer.SchedulePreview
}

func (s scheduleResponse) Code() int {
	return http.StatusOK
}

func (s scheduleResponse) Headers() map[string]string {
	return map[string]string{}
}

func (s scheduleResponse) Empty() bool {
	return false
}
