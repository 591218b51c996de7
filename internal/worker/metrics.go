package worker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const (
	jobName = "storybook_worker"

	taskStatusSuccess     = "success"
	taskStatusFailed      = "failed"
	taskStatusInvalid     = "invalid"
	taskStatusInterrupted = "interrupted"
)

var (
	tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storybook_worker_tasks_processed_total",
		Help: "Total number of processed generation tasks by final status.",
	}, []string{"status"})
	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storybook_worker_task_duration_seconds",
		Help:    "Duration of generation tasks.",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200},
	}, []string{"status"})
	pagesPerBook = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storybook_worker_pages_per_book",
		Help:    "Number of pages in generated storybooks.",
		Buckets: prometheus.LinearBuckets(1, 2, 10),
	})
	saveAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storybook_worker_save_attempts_total",
		Help: "Total number of storybook save attempts.",
	})
)

func observeTask(status string, start time.Time) {
	tasksProcessed.WithLabelValues(status).Inc()
	taskDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

// NewMetricsServer отдает /metrics и /health.
func NewMetricsServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// RunMetricsPusher периодически отправляет метрики в Pushgateway и удаляет
// группу инстанса при остановке.
func RunMetricsPusher(ctx context.Context, url string, interval time.Duration, logger *zap.Logger) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	instance := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	pusher := push.New(url, jobName).Gatherer(prometheus.DefaultGatherer).Grouping("instance", instance)
	logger.Info("Pushing metrics to Pushgateway", zap.String("url", url), zap.String("instance", instance))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := pusher.Delete(); err != nil {
				logger.Warn("Failed to delete metrics from Pushgateway", zap.Error(err))
			}
			return
		case <-ticker.C:
			if err := pusher.Push(); err != nil {
				logger.Warn("Failed to push metrics", zap.Error(err))
			}
		}
	}
}
