package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixora/tollgate/domain/entity"
	"github.com/fixora/tollgate/domain/state"
)

func TestMetrics_CountsAuditRecords(t *testing.T) {
	m := New()

	m.OnAudit(entity.AuditRecord{EventKind: entity.EventTransferApproved, Status: entity.StatusApproved})
	m.OnAudit(entity.AuditRecord{EventKind: entity.EventTransferApproved, Status: entity.StatusApproved})
	m.OnAudit(entity.AuditRecord{EventKind: entity.EventInjectionDetected, Status: entity.StatusLockdown})
	m.OnAudit(entity.AuditRecord{EventKind: entity.EventHoldApproved, Status: "RESOLVED:abc"})
	m.OnAudit(entity.AuditRecord{EventKind: entity.EventHoldApproved, Status: "RESOLVED:def"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.auditRecords.WithLabelValues("TRANSFER_APPROVED", "APPROVED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.auditRecords.WithLabelValues("HOLD_APPROVED", "RESOLVED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockdowns))
	assert.Equal(t, 3, testutil.CollectAndCount(m.auditRecords))
}

func TestMetrics_StateGauges(t *testing.T) {
	m := New()
	store := state.NewStore(decimal.NewFromInt(100))
	m.WatchState(store)

	store.SetLocked(true)
	req, err := entity.NewTransferRequest("bob", decimal.NewFromInt(500), "")
	require.NoError(t, err)
	store.EnqueuePending(req)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		if len(f.GetMetric()) == 1 && f.GetMetric()[0].GetGauge() != nil {
			values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["tollgate_lockdown_active"])
	assert.Equal(t, 1.0, values["tollgate_pending_transfers"])
}

func TestMetrics_HandlerExposesSeries(t *testing.T) {
	m := New()
	var dropped uint64 = 4
	m.WatchDropped("audit_notifications_dropped_total", "Dropped audit notifications.", func() uint64 { return dropped })
	m.ObserveRequest("/v1/verify-transfer", http.StatusOK, 5*time.Millisecond)
	m.RateLimited()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)
	assert.Contains(t, out, `tollgate_http_requests_total{code="200",route="/v1/verify-transfer"} 1`)
	assert.Contains(t, out, "tollgate_audit_notifications_dropped_total 4")
	assert.Contains(t, out, "tollgate_rate_limit_rejections_total 1")
}
