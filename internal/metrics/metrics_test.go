package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersAccumulate(t *testing.T) {
	before := testutil.ToFloat64(AckOutcomes.WithLabelValues("read", "applied"))
	AckOutcomes.WithLabelValues("read", "applied").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(AckOutcomes.WithLabelValues("read", "applied")))

	WebSocketConnections.Set(3)
	require.Equal(t, float64(3), testutil.ToFloat64(WebSocketConnections))
	WebSocketConnections.Set(0)
}
