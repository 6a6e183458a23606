package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	// producer
	OrdersPublished prometheus.Counter
	PublishErrors   prometheus.Counter

	// HTTP surface
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// pipeline
	RecordsPulled    prometheus.Counter
	MalformedDropped prometheus.Counter
	BatchesWritten   prometheus.Counter
	RowsLoaded       prometheus.Counter
	SummaryRows      prometheus.Gauge
	RunsTotal        prometheus.Counter
	RunsEmpty        prometheus.Counter
	RunsFailed       prometheus.Counter
	RunDurationSec   prometheus.Histogram
	LastRunAgeSec    prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	ordersPublished := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_orders_published_total"})
	publishErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_publish_errors_total"})

	recordsPulled := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_pipeline_records_pulled_total"})
	malformed := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_pipeline_malformed_dropped_total"})
	batchesWritten := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_pipeline_batches_written_total"})
	rowsLoaded := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_pipeline_rows_loaded_total"})
	summaryRows := prometheus.NewGauge(prometheus.GaugeOpts{Name: "sales_pipeline_summary_rows"})
	runsTotal := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_pipeline_runs_total"})
	runsEmpty := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_pipeline_runs_empty_total"})
	runsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "sales_pipeline_runs_failed_total"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sales_pipeline_run_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	lastRunAge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "sales_pipeline_last_run_age_seconds"})

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total"},
		[]string{"handler", "method", "status"},
	)
	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Buckets: prometheus.DefBuckets},
		[]string{"handler", "method"},
	)

	r.MustRegister(ordersPublished, publishErrors, recordsPulled, malformed, batchesWritten,
		rowsLoaded, summaryRows, runsTotal, runsEmpty, runsFailed, runDuration, lastRunAge,
		httpRequests, httpDuration)
	return &Registry{
		reg:                 r,
		OrdersPublished:     ordersPublished,
		PublishErrors:       publishErrors,
		HTTPRequestsTotal:   httpRequests,
		HTTPRequestDuration: httpDuration,
		RecordsPulled:       recordsPulled,
		MalformedDropped:    malformed,
		BatchesWritten:      batchesWritten,
		RowsLoaded:          rowsLoaded,
		SummaryRows:         summaryRows,
		RunsTotal:           runsTotal,
		RunsEmpty:           runsEmpty,
		RunsFailed:          runsFailed,
		RunDurationSec:      runDuration,
		LastRunAgeSec:       lastRunAge,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
