package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveBid(ResultAccepted)
	m.ObserveBid(ResultAccepted)
	m.ObserveBid(ResultTooLow)
	m.ObserveClose()
	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()
	m.ObserveDropped()

	require.Equal(t, 2.0, testutil.ToFloat64(m.bids.WithLabelValues(ResultAccepted)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.bids.WithLabelValues(ResultTooLow)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.closed))
	require.Equal(t, 1.0, testutil.ToFloat64(m.subscribers))
	require.Equal(t, 1.0, testutil.ToFloat64(m.dropped))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveClose()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Equal(t, 200, rec.Code)
	require.Contains(t, string(body), "auction_closed_total 1")
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	// Two instances must not panic on duplicate registration.
	a, b := New(), New()
	a.ObserveClose()
	require.Equal(t, 0.0, testutil.ToFloat64(b.closed))
}
