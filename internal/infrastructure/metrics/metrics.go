package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// values of the "result" label
const (
	Request          = "request"
	UploadStarted    = "upload_started"
	UploadCompleted  = "upload_completed"
	UploadConflict   = "upload_conflict"
	Sanitized        = "sanitized"
	SignedURLIssued  = "signed_url_issued"
	SignedURLDenied  = "signed_url_denied"
	StorageDataLoss  = "storage_data_loss"
	AuditPublished   = "audit_published"
	AuditDropped     = "audit_dropped"
	AuditPublishFail = "audit_publish_failed"
)

func NewCounter() *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attachments",
			Name:      "general_counters",
		},
		[]string{"result"})
}
