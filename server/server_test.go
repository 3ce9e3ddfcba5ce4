package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgroup/datacrew/crew"
	"github.com/antgroup/datacrew/report"
	"github.com/antgroup/datacrew/store"
)

type fakeRunner struct {
	queries []string
	err     error
}

func (f *fakeRunner) Kickoff(_ context.Context, q string) (*crew.Result, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return &crew.Result{Query: q, Status: crew.StatusError}, f.err
	}
	rep := report.NewAnalysis("Lazio has the most administrators.")
	rep.Query = q
	rep.Visualization = report.Outcome{
		Status:  report.StatusNotApplicable,
		Message: "Visualization not applicable: single value",
	}
	return &crew.Result{
		RunID:    "run-1",
		Query:    q,
		Status:   crew.StatusOK,
		States:   []string{crew.StateAnalyze, crew.StateVisualize, crew.StateReport, crew.StateDone},
		Analysis: "Lazio has the most administrators.",
		Report:   rep,
	}, nil
}

type fakeHistory struct {
	runs map[string]store.Run
}

func (f *fakeHistory) Get(_ context.Context, id string) (*store.Run, error) {
	r, ok := f.runs[id]
	if !ok {
		return nil, errors.Wrap(store.ErrNotFound, id)
	}
	return &r, nil
}

func (f *fakeHistory) List(_ context.Context, _ int) ([]store.Run, error) {
	out := make([]store.Run, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out, nil
}

func postQuery(t *testing.T, h http.Handler, q string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"query": {q}}
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIndex(t *testing.T) {
	h := New(&fakeRunner{}, WithHistory(&fakeHistory{runs: map[string]store.Run{
		"r1": {ID: "r1", Query: "stipendi per regione", Status: "ok", CreatedAt: time.Now()},
	}})).Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<form method="post" action="/query">`)
	assert.Contains(t, body, `href="/runs/r1"`)
}

func TestQueryRendersReport(t *testing.T) {
	r := &fakeRunner{}
	w := postQuery(t, New(r).Handler(), "  who has the most admins?  ")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"who has the most admins?"}, r.queries)
	body := w.Body.String()
	assert.Contains(t, body, "Analytical Insights")
	assert.Contains(t, body, "Lazio has the most administrators.")
	assert.Contains(t, body, "Visualization not applicable")
}

func TestQueryJSON(t *testing.T) {
	w := postQuery(t, New(&fakeRunner{}).Handler(), "admins", "Accept", "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	var got resultSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "not_applicable", got.Visualization)
	assert.Equal(t, crew.StateDone, got.States[len(got.States)-1])
}

func TestQueryEmpty(t *testing.T) {
	r := &fakeRunner{}
	w := postQuery(t, New(r).Handler(), "   ")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, r.queries)
	assert.Contains(t, w.Body.String(), crew.ErrEmptyQuery.Error())
}

func TestQueryFailure(t *testing.T) {
	w := postQuery(t, New(&fakeRunner{err: crew.ErrAnalysisFailed}).Handler(), "admins")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `class="error"`)
}

func TestGetRun(t *testing.T) {
	h := New(&fakeRunner{}, WithHistory(&fakeHistory{runs: map[string]store.Run{
		"r1": {ID: "r1", Query: "q", Status: "ok", Analysis: "Stored answer.", Outcome: "not_applicable", Message: "nothing to plot"},
	}})).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/r1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Stored answer.")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRunWithoutHistory(t *testing.T) {
	w := httptest.NewRecorder()
	New(&fakeRunner{}).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs/r1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("datacrew_runs_total 1\n"))
	})
	h := New(&fakeRunner{}, WithMetrics(metrics)).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "datacrew_runs_total")
}
