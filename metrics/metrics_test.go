package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	r := New()
	r.ObserveRequest("data", 200, 3*time.Millisecond)
	r.ObserveRequest("data", 200, time.Millisecond)
	r.ObserveRequest("static", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("data", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("static", "404")))
}

func TestObservePublish(t *testing.T) {
	r := New()
	r.ObservePublish(5, false, nil)
	r.ObservePublish(7, true, nil)
	r.ObservePublish(0, false, errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.DNSPublish.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.DNSPublish.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.DNSReloadFailures))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.DNSHostsEntries))
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObserveRequest("data", 200, time.Millisecond)
		r.ObservePublish(1, true, nil)
	})
}

func TestHandler(t *testing.T) {
	r := New()
	r.ObserveRequest("conf", 404, time.Millisecond)

	rr := httptest.NewRecorder()
	r.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `overlaymgr_http_requests_total{code="404",route="conf"} 1`)
}
