package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/churn-radar/internal/config"
	"github.com/ignite/churn-radar/internal/metrics"
	"github.com/ignite/churn-radar/internal/pipeline"
	"github.com/ignite/churn-radar/internal/scoring"
	"github.com/ignite/churn-radar/internal/service/rules"
	"github.com/ignite/churn-radar/internal/suggest"
)

const (
	subscriptionCSV = "customer_id,email,subscription_status,subscription_type,total_payments,payment_failures\n" +
		"C1,a@x.com,active,monthly,5,2\n" +
		"C3,c@x.com,canceled,annual,3,1\n"
	engagementCSV = "email,percent_emails_clicked,days_since_last_email_click\n" +
		"a@x.com,0.1,120\n" +
		"b@x.com,0.5,10\n"
	supportCSV = "email,number_of_tickets,recent_ticket_issue\n" +
		"a@x.com,4,billing\n"
)

// memRepo is an in-memory rules.Repository.
type memRepo struct {
	mu   sync.Mutex
	sets map[string][]rules.SavedRuleSet
}

func (m *memRepo) Insert(_ context.Context, rs *rules.SavedRuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs.Version = len(m.sets[rs.Name]) + 1
	rs.CreatedAt = time.Now()
	m.sets[rs.Name] = append(m.sets[rs.Name], *rs)
	return nil
}

func (m *memRepo) Latest(_ context.Context, name string) (*rules.SavedRuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.sets[name]
	if len(v) == 0 {
		return nil, rules.ErrNotFound
	}
	out := v[len(v)-1]
	return &out, nil
}

func (m *memRepo) Version(_ context.Context, name string, version int) (*rules.SavedRuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.sets[name]
	if version < 1 || version > len(v) {
		return nil, rules.ErrNotFound
	}
	out := v[version-1]
	return &out, nil
}

func (m *memRepo) List(_ context.Context) ([]rules.SavedRuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rules.SavedRuleSet
	for _, v := range m.sets {
		out = append(out, v[len(v)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeSuggester struct{}

func (fakeSuggester) Suggest(_ context.Context, req suggest.Request) (*suggest.Suggestion, error) {
	rs := scoring.DefaultRuleSet()
	rs[0].Threshold = 3
	return &suggest.Suggestion{Rules: rs, Adopted: []scoring.Field{scoring.FieldPaymentFailures}, ModelID: "fake"}, nil
}

func newTestServer(t *testing.T, sug suggest.Suggester) http.Handler {
	t.Helper()
	deps := Deps{
		Pipeline:  pipeline.NewService(pipeline.Options{}),
		Rules:     rules.NewService(&memRepo{sets: map[string][]rules.SavedRuleSet{}}),
		Suggester: sug,
		Metrics:   metrics.NewRegistry(),
	}
	return NewServer(config.ServerConfig{MaxUploadMB: 1}, deps).Handler()
}

func uploadRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/snapshots", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createBatch(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(h, uploadRequest(t, map[string]string{
		"subscription": subscriptionCSV,
		"engagement":   engagementCSV,
		"support":      supportCSV,
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var report pipeline.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Profiles)
	assert.Equal(t, 1, report.Churned)
	return report.BatchID
}

func TestSnapshotLifecycle(t *testing.T) {
	h := newTestServer(t, nil)
	id := createBatch(t, h)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/snapshots/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"profiles":3`)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/snapshots/"+id+"/unified.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 4)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/snapshots/"+id+"/score", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res pipeline.ScoreResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Summary.Count)
	assert.InDelta(t, 0.5, res.Summary.Mean, 1e-9)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/snapshots/latest/scored.csv?active_only=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "customer_id,email,churn_status,churn_risk_score,churn_risk_segment", lines[0])

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/snapshots/"+id+"/active-segments", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"batch_id":"`+id+`","assignments":[
		{"email":"a@x.com","churn_risk_segment":"High Risk"},
		{"email":"b@x.com","churn_risk_segment":"Low Risk"}]}`, rec.Body.String())
}

func TestScoreErrors(t *testing.T) {
	h := newTestServer(t, nil)
	id := createBatch(t, h)

	rec := do(h, httptest.NewRequest(http.MethodPost, "/api/snapshots/nope/score", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/snapshots/"+id+"/score", strings.NewReader(`{"rule_set":"missing"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/snapshots/"+id+"/score",
		strings.NewReader(`{"rules":[{"field":"age","operator":"gt","threshold":1,"weight":1}]}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), codeRuleSet)
}

func TestCreateSnapshotErrors(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(h, uploadRequest(t, map[string]string{"subscription": subscriptionCSV, "engagement": engagementCSV}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing support file")

	rec = do(h, uploadRequest(t, map[string]string{
		"subscription": "customer_id,email,subscription_status\nC1,a@x.com,active\n",
		"engagement":   engagementCSV,
		"support":      supportCSV,
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), codeSchema)

	rec = do(h, uploadRequest(t, map[string]string{"subscription": "", "engagement": engagementCSV, "support": supportCSV}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), codeEmptyInput)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/snapshots/load", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRuleSets(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(h, httptest.NewRequest(http.MethodPost, "/api/rule-sets",
		strings.NewReader(`{"name":"strict","rules":[{"field":"number_of_tickets","operator":">=","threshold":1,"weight":1}]}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"version":1`)

	req := httptest.NewRequest(http.MethodPost, "/api/rule-sets?name=strict",
		strings.NewReader("rules:\n  - field: number_of_tickets\n    operator: gte\n    threshold: 2\n    weight: 1\n"))
	req.Header.Set("Content-Type", "application/yaml")
	rec = do(h, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"version":2`)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/rule-sets",
		strings.NewReader(`{"name":"bad","rules":[{"field":"payment_failures","operator":"gte","threshold":1,"weight":-1}]}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/rule-sets",
		strings.NewReader(`{"name":"default","rules":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/rule-sets/strict?version=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"threshold":1`)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/rule-sets/strict/yaml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "threshold: 2")

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/rule-sets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		RuleSets []rules.SavedRuleSet `json:"rule_sets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.RuleSets, 2)
	assert.Equal(t, "default", list.RuleSets[0].Name)

	id := createBatch(t, h)
	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/snapshots/"+id+"/active-segments?rules=strict", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `{"email":"a@x.com","churn_risk_segment":"High Risk"}`)
}

func TestSuggest(t *testing.T) {
	h := newTestServer(t, nil)
	id := createBatch(t, h)
	rec := do(h, httptest.NewRequest(http.MethodPost, "/api/snapshots/"+id+"/suggest", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = newTestServer(t, fakeSuggester{})
	id = createBatch(t, h)
	rec = do(h, httptest.NewRequest(http.MethodPost, "/api/snapshots/"+id+"/suggest", strings.NewReader(`{"save_as":"fitted"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"adopted":["payment_failures"]`)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/rule-sets/fitted", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"origin":"suggested"`)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	createBatch(t, h)
	rec = do(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "churn_stage_runs_total")
}

func TestListRuns(t *testing.T) {
	deps := Deps{
		Pipeline: pipeline.NewService(pipeline.Options{History: pipeline.NewMemoryHistory(10)}),
		Rules:    rules.NewService(nil),
	}
	h := NewServer(config.ServerConfig{MaxUploadMB: 1}, deps).Handler()
	id := createBatch(t, h)

	rec := do(h, httptest.NewRequest(http.MethodPost, "/api/snapshots/"+id+"/score", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/runs?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []pipeline.RunRecord `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "score", body.Runs[0].Stage)
	assert.Equal(t, id, body.Runs[0].BatchID)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/runs?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRunsWithoutHistory(t *testing.T) {
	h := newTestServer(t, nil)
	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"runs":[]}`, rec.Body.String())
}

func TestDownloadsDoNotRecordRuns(t *testing.T) {
	hist := pipeline.NewMemoryHistory(10)
	deps := Deps{
		Pipeline: pipeline.NewService(pipeline.Options{History: hist}),
		Rules:    rules.NewService(nil),
	}
	h := NewServer(config.ServerConfig{MaxUploadMB: 1}, deps).Handler()
	id := createBatch(t, h)

	for _, path := range []string{"/scored.csv?active_only=true", "/active-segments"} {
		rec := do(h, httptest.NewRequest(http.MethodGet, "/api/snapshots/"+id+path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	recs, err := hist.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "unify", recs[0].Stage)
}
