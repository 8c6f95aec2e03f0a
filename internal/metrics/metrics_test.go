package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordDecision(t *testing.T) {
	c, err := New("test")
	require.NoError(t, err)

	c.RecordDecision("block", "BAD-BOT", "PROTECT")
	c.RecordDecision("block", "BAD-BOT", "PROTECT")
	c.RecordDecision("forward", "", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.decisionsTotal.WithLabelValues("block", "BAD-BOT", "PROTECT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.decisionsTotal.WithLabelValues("forward", "", "")))
}

func TestCollector_RecordClassifierCall(t *testing.T) {
	c, err := New("test")
	require.NoError(t, err)

	c.RecordClassifierCall("none", 20*time.Millisecond)
	c.RecordClassifierCall("timeout", 3*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.classifierErrors.WithLabelValues("timeout")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.classifierDuration))
}

func TestCollector_Registry(t *testing.T) {
	c, err := New("test")
	require.NoError(t, err)
	c.RecordDecision("block", "BAD-BOT", "PROTECT")
	c.RecordDecision("forward_with_cors", "", "")

	n, err := testutil.GatherAndCount(c.Registry(), "test_decisions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordDecision("forward", "", "")
		c.RecordClassifierCall("transport", time.Second)
	})
}

func TestCollector_Handler(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	c.RecordDecision("forward_with_headers", "HUMAN", "PROTECT")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Contains(t, rec.Body.String(), `veil_edge_decisions_total{classification="HUMAN",mode="PROTECT",outcome="forward_with_headers"} 1`)
}
