// Package metrics registers the service's Prometheus collectors. Everything
// is registered on the default registry and served by /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarksAccepted counts successful attendance marks.
	MarksAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_marks_accepted_total",
		Help: "Attendance records created through the mark endpoint.",
	})

	// MarksRejected counts rejected marks by reason.
	MarksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geoattend_marks_rejected_total",
		Help: "Attendance marks rejected, labeled by reason.",
	}, []string{"reason"})

	// AuditSessionsExamined counts schedule entries inspected by audit runs.
	AuditSessionsExamined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_audit_sessions_examined_total",
		Help: "Schedule entries examined by the session auditor.",
	})

	// AuditRecordsVoided counts records invalidated by audit runs.
	AuditRecordsVoided = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geoattend_audit_records_voided_total",
		Help: "Attendance records voided by the session auditor.",
	})
)

// Rejection reasons for MarksRejected.
const (
	ReasonNoSession     = "no_active_session"
	ReasonOutOfRange    = "out_of_range"
	ReasonDuplicate     = "already_marked"
	ReasonForbidden     = "forbidden"
	ReasonBadCoordinate = "invalid_coordinate"
)
