package messaging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storybook_worker_tasks_received_total",
		Help: "Total number of generation tasks received from the queue.",
	})
	tasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storybook_worker_tasks_rejected_total",
		Help: "Total number of tasks rejected to the dead-letter queue, by reason.",
	}, []string{"reason"})
)
