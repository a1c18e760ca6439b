package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/pitchdeck/internal/apperrors"
	"gorm.io/gorm"
)

const (
	MembershipSourceCreateOrg    = "create_organisation"
	MembershipSourceAddManager   = "add_manager"
	MembershipSourceAddMember    = "add_member"
	MembershipSourceInviteAccept = "invite_accept"
)

const (
	FailureReasonDeadlineExceeded     = "deadline_exceeded"
	FailureReasonDBLockTimeout        = "db_lock_timeout"
	FailureReasonSerializationFailure = "serialization_failure"
	FailureReasonUniqueViolation      = "unique_violation"
	FailureReasonUnknown              = "unknown"
)

// DomainMetrics exposes collaboration health on the Prometheus registry.
type DomainMetrics struct {
	membershipChanges     *prometheus.CounterVec
	invitationTransitions *prometheus.CounterVec
	operationFailures     *prometheus.CounterVec
	uploadBytes           prometheus.Histogram
}

var (
	domainMetricsOnce sync.Once
	domainMetrics     *DomainMetrics
)

// Domain returns the singleton domain metrics registered with the default registerer.
func Domain(cfg Config) *DomainMetrics {
	domainMetricsOnce.Do(func() {
		domainMetrics = newDomainMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return domainMetrics
}

// ResetDomainMetricsForTest drops the singleton so tests can register again.
func ResetDomainMetricsForTest() {
	domainMetricsOnce = sync.Once{}
	domainMetrics = nil
}

func newDomainMetrics(registerer prometheus.Registerer, cfg Config) *DomainMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	m := &DomainMetrics{
		membershipChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pitchdeck_membership_changes_total",
			Help:        "Memberships created, by the operation that created them.",
			ConstLabels: constLabels,
		}, []string{"source"}),
		invitationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pitchdeck_invitation_transitions_total",
			Help:        "Invitation status transitions.",
			ConstLabels: constLabels,
		}, []string{"to"}),
		operationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pitchdeck_operation_failures_total",
			Help:        "Failed domain operations by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"operation", "reason"}),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "pitchdeck_media_upload_bytes",
			Help:        "Size of accepted media uploads.",
			Buckets:     prometheus.ExponentialBuckets(64<<10, 4, 8),
			ConstLabels: constLabels,
		}),
	}
	registerer.MustRegister(m.membershipChanges, m.invitationTransitions, m.operationFailures, m.uploadBytes)
	return m
}

func (m *DomainMetrics) IncMembership(source string) {
	if m == nil {
		return
	}
	m.membershipChanges.WithLabelValues(source).Inc()
}

func (m *DomainMetrics) IncInvitationTransition(to string) {
	if m == nil {
		return
	}
	m.invitationTransitions.WithLabelValues(strings.ToUpper(to)).Inc()
}

// IncFailure records err against operation. Nil errors are ignored.
func (m *DomainMetrics) IncFailure(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.operationFailures.WithLabelValues(operation, ClassifyFailureReason(err)).Inc()
}

func (m *DomainMetrics) ObserveUploadBytes(size int64) {
	if m == nil || size < 0 {
		return
	}
	m.uploadBytes.Observe(float64(size))
}

// ClassifyFailureReason maps err to a bounded label value.
func ClassifyFailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return FailureReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return FailureReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return FailureReasonSerializationFailure
	case hasPGCode(err, "23505"), errors.Is(err, gorm.ErrDuplicatedKey):
		return FailureReasonUniqueViolation
	}
	if appErr, ok := apperrors.As(err); ok {
		return string(appErr.Kind)
	}
	return FailureReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
