package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/absmach/tuner/pkg/run"
	"github.com/absmach/tuner/pkg/schedule"
)

const (
	runsEndpoint     = "/runs"
	historyEndpoint  = "history"
	scheduleEndpoint = "/schedule"
)

type (
	Run          = run.Run
	RunPage      = run.Page
	EpochMetrics = run.EpochMetrics
	Schedule     = schedule.Config
)

type History struct {
	RunID  string               `json:"run_id"`
	Series map[string][]float64 `json:"history"`
	Epochs []EpochMetrics       `json:"epochs"`
}

type SchedulePreview struct {
	Schedule Schedule  `json:"schedule"`
	Rates    []float64 `json:"rates"`
}

func (sdk *tunerSDK) GetRun(id string) (Run, error) {
	url := sdk.serverURL + runsEndpoint + "/" + id

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return Run{}, err
	}

	var r Run
	if err := json.Unmarshal(body, &r); err != nil {
		return Run{}, err
	}

	return r, nil
}

func (sdk *tunerSDK) ListRuns(offset, limit uint64) (RunPage, error) {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	query := ""
	if len(queries) > 0 {
		query = "?" + strings.Join(queries, "&")
	}
	url := sdk.serverURL + runsEndpoint + query

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return RunPage{}, err
	}

	var rp RunPage
	if err := json.Unmarshal(body, &rp); err != nil {
		return RunPage{}, err
	}

	return rp, nil
}

func (sdk *tunerSDK) GetHistory(id string) (History, error) {
	url := sdk.serverURL + runsEndpoint + "/" + id + "/" + historyEndpoint

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return History{}, err
	}

	var h History
	if err := json.Unmarshal(body, &h); err != nil {
		return History{}, err
	}

	return h, nil
}

func (sdk *tunerSDK) PreviewSchedule(s Schedule) (SchedulePreview, error) {
	url := fmt.Sprintf("%s%s?peak=%g&total_steps=%d&warmup_steps=%d", sdk.serverURL, scheduleEndpoint, s.PeakLearningRate, s.TotalSteps, s.WarmupSteps)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return SchedulePreview{}, err
	}

	var p SchedulePreview
	if err := json.Unmarshal(body, &p); err != nil {
		return SchedulePreview{}, err
	}

	return p, nil
}
