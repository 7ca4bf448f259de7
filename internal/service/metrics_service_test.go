package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lostfound-api/internal/models"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()

	m.ObserveItemTransition(models.StatusFound, models.StatusDelivered)
	m.ObserveItemTransition(models.StatusFound, models.StatusDelivered)
	m.ObserveLogin(false)
	m.ObserveHTTPRequest("GET", "/api/items", 200, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.itemTransitions.WithLabelValues("achado", "entregue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/api/items", "200")))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveItemTransition(models.StatusFound, models.StatusExpired)
		m.ObserveLogin(true)
		m.ObservePhotoCleanup(true)
		m.ObserveItemCreated(models.StatusLost)
	})
	assert.NotNil(t, m.Handler())
}
