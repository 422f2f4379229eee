package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAuthEvent(t *testing.T) {
	m := New()
	m.RecordAuthEvent("login", "success")
	m.RecordAuthEvent("login", "success")
	m.RecordAuthEvent("login", "invalid_credentials")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authEvents.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authEvents.WithLabelValues("login", "invalid_credentials")))
}

func TestRecordDelivery(t *testing.T) {
	m := New()
	m.RecordDelivery("sent")
	m.RecordDelivery("dropped")

	expected := `
# HELP cipe_auth_email_deliveries_total Notification deliveries by outcome.
# TYPE cipe_auth_email_deliveries_total counter
cipe_auth_email_deliveries_total{outcome="dropped"} 1
cipe_auth_email_deliveries_total{outcome="sent"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "cipe_auth_email_deliveries_total"))
}

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP("/auth/login", "POST", 200, 10*time.Millisecond)
	m.ObserveHTTP("", "GET", 404, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/auth/login", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("unmatched", "GET", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.httpDuration))
}

func TestRuntimeCollectors(t *testing.T) {
	m := New()
	families, err := m.Registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["go_goroutines"], "expected go runtime collector")
	assert.True(t, names["go_info"], "expected go build info")
}
