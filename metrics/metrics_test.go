package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSessionEvent(t *testing.T) {
	before := testutil.ToFloat64(SessionEventsTotal.WithLabelValues("phase_changed"))

	RecordSessionEvent("phase_changed", true)
	assert.Equal(t, before+1, testutil.ToFloat64(SessionEventsTotal.WithLabelValues("phase_changed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(SessionAuthenticated))

	RecordSessionEvent("logged_out", false)
	assert.Equal(t, float64(0), testutil.ToFloat64(SessionAuthenticated))
}

func TestRecordCartEvent(t *testing.T) {
	RecordCartEvent("added", 4)

	assert.Equal(t, float64(4), testutil.ToFloat64(CartItems))
	assert.GreaterOrEqual(t, testutil.ToFloat64(CartEventsTotal.WithLabelValues("added")), float64(1))
}

func TestRecordError(t *testing.T) {
	before := testutil.ToFloat64(ErrorsTotal.WithLabelValues("checkout", "ORDER_SUBMIT_FAILED"))

	RecordError("checkout", "ORDER_SUBMIT_FAILED")

	assert.Equal(t, before+1, testutil.ToFloat64(ErrorsTotal.WithLabelValues("checkout", "ORDER_SUBMIT_FAILED")))
}
