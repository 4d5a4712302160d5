package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// StagePrecheck marks a conflict found by looking up stored answers.
	StagePrecheck = "precheck"
	// StageStorage marks a conflict raised by the unique answer index on insert.
	StageStorage = "storage"
	// StagePayload marks two answers of the same upload colliding.
	StagePayload = "payload"
)

var (
	// UploadsTotal counts upload responses by HTTP status and response code.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ec5_uploads_total",
			Help: "Total number of entry uploads",
		},
		[]string{"status", "code"},
	)

	// UploadDuration observes the time spent handling an upload.
	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ec5_upload_duration_seconds",
			Help:    "Entry upload duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// UniquenessConflictsTotal counts rejected answers by scope and by where the conflict was found.
	UniquenessConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ec5_uniqueness_conflicts_total",
			Help: "Total number of answers rejected as not unique",
		},
		[]string{"scope", "stage"},
	)
)
