package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Jobs a worker failed, threw a BPMN error for, or left unanswered",
		},
		[]string{"task_type", "outcome"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	ListingsMatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_matched_total",
			Help: "Listings reconciled, by resulting match type",
		},
		[]string{"match_type"},
	)

	MatchScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_score",
			Help:    "Distribution of the best candidate score per listing",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.65, 0.75, 0.85, 0.95, 1},
		},
	)

	ReviewDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_decisions_total",
			Help: "Review decisions submitted, by decision and result",
		},
		[]string{"decision", "result"},
	)

	ComplianceReportsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_reports_created_total",
			Help: "Compliance reports opened, by severity",
		},
		[]string{"severity"},
	)

	EnforcementRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enforcement_runs_total",
			Help: "Enforcement prioritization runs",
		},
	)

	BatchListingsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_listings_processed_total",
			Help: "Listings handled by reconciliation batches, by outcome",
		},
		[]string{"outcome"},
	)

	CandidateRetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "candidate_retrieval_duration_seconds",
			Help: "Time spent fetching candidate properties",
		},
		[]string{"backend"},
	)
)
