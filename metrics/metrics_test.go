package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(DefaultConfig())
	r.RecordStage("analyze", 2*time.Second, "ok")
	r.RecordStage("analyze", time.Second, "ok")
	r.RecordStage("visualize", time.Second, "error")
	r.RecordScript("analysis", 10*time.Millisecond, "ok")
	r.RecordLLM("Analyst", 120)
	r.RecordLLM("Analyst", 0)
	r.RecordRun("sequential", "rendered")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.stageOutcomes.WithLabelValues("analyze", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stageOutcomes.WithLabelValues("visualize", "error")))
	assert.Equal(t, 120.0, testutil.ToFloat64(r.llmTokens.WithLabelValues("Analyst")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.llmCalls.WithLabelValues("Analyst")))
}

func TestRecorderHandler(t *testing.T) {
	r := New(Config{})
	r.RecordScript("plotting", time.Millisecond, "timeout")

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "datacrew_script_executions_total")
	assert.Contains(t, w.Body.String(), `result="timeout"`)
}
