package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"storybook-server/internal/model"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storybook_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)
	pageOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storybook_pipeline_page_outcomes_total",
			Help: "Per-page outcomes of media stages.",
		},
		[]string{"stage", "outcome"},
	)
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storybook_pipeline_runs_total",
			Help: "Finished pipeline runs by final stage.",
		},
		[]string{"stage"},
	)
)

// withTimeout ограничивает ожидание одного внешнего вызова. Нулевой таймаут -
// без ограничения.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// guard выполняет fn, превращая панику в ошибку ErrTaskPanicked.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()
	return fn()
}

// timedOut сообщает, что вызов прерван собственным таймаутом, а не отменой
// всего прогона.
func timedOut(callCtx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
}

// classifyMedia раскладывает результат вызова по трем исходам MediaResult.
func classifyMedia(callCtx context.Context, uri string, err error, family string) model.MediaResult {
	switch {
	case err != nil && timedOut(callCtx, err):
		return model.MediaUnavailableBecause("timed out")
	case err != nil:
		return model.MediaFailedWith(err)
	case uri == "":
		return model.MediaUnavailableBecause("no media returned")
	}
	if verr := model.ValidateDataURI(uri, family); verr != nil {
		return model.MediaUnavailableBecause(verr.Error())
	}
	return model.MediaOf(uri)
}
