package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scanqa_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 120},
		},
		[]string{"stage"}, // stage: decode, render, locate, binarize, assess, ocr
	)

	assessmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanqa_assessments_total",
			Help: "Total number of assessed documents by quality category",
		},
		[]string{"category"},
	)

	batchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanqa_batch_items_total",
			Help: "Total number of batch items by outcome",
		},
		[]string{"outcome"}, // outcome: ok, empty, error
	)

	inferenceInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scanqa_inference_in_flight",
			Help: "Number of inference calls currently holding a worker slot",
		},
	)
)

// observeStage starts a timer; call the returned func when the stage ends.
func observeStage(stage string) func() {
	start := time.Now()
	return func() {
		stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func recordBatchItem(item BatchItemResult) {
	switch {
	case item.Err != nil:
		batchItemsTotal.WithLabelValues("error").Inc()
	case len(item.Records) == 0:
		batchItemsTotal.WithLabelValues("empty").Inc()
	default:
		batchItemsTotal.WithLabelValues("ok").Inc()
	}
}
