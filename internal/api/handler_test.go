package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intercept-sandbox/internal/engine"
	"intercept-sandbox/internal/frequency"
	"intercept-sandbox/internal/storage"
)

func catalogue() *storage.Memory {
	m := storage.NewMemory()
	m.Update(
		[]storage.ProjectRow{{BrandID: "qcorpeu", ID: "ZN_1", Name: "Sandbox", Status: "ACTIVE"}},
		[]storage.InterceptRow{
			{
				ID: "SI_test", BrandID: "qcorpeu", ProjectID: "ZN_1", Status: "ACTIVE", SamplePercent: 100,
				RepeatWindowSeconds: 3600, Headline: "Quick question",
				Rules: []storage.RuleRow{{Dimension: "test", IsInclusion: true, Values: []string{"sdkTest"}}},
			},
			{
				ID: "SI_linux", BrandID: "qcorpeu", ProjectID: "ZN_1", Status: "ACTIVE", SamplePercent: 100,
				Rules: []storage.RuleRow{{Dimension: "os", IsInclusion: true, Values: []string{"linux"}}},
			},
		},
	)
	return m
}

func newTestHandler(t *testing.T) (*InterceptHandler, *miniredis.Miniredis) {
	t.Helper()
	eng := engine.NewEngine()
	require.NoError(t, eng.BuildSnapshot(context.Background(), catalogue()))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	freq := &frequency.Redis{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	return NewInterceptHandler(eng, freq), mr
}

func do(t *testing.T, h http.Handler, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestProject(t *testing.T) {
	h, _ := newTestHandler(t)
	r := Router(h)

	w := do(t, r, http.MethodGet, "/v1/brands/qcorpeu/projects/ZN_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "Sandbox", p.Name)
	assert.Equal(t, []string{"SI_linux", "SI_test"}, p.Intercepts)

	w = do(t, r, http.MethodGet, "/v1/brands/qcorpeu/projects/ZN_nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvaluate_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		body       any
		wantStatus int
		wantPassed bool
		wantReason string
	}{
		{
			name:       "bad json",
			url:        "/v1/intercepts/SI_test/evaluate",
			body:       "{",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing session",
			url:        "/v1/intercepts/SI_test/evaluate",
			body:       EvaluateRequest{BrandID: "qcorpeu", ProjectID: "ZN_1"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing project",
			url:        "/v1/intercepts/SI_test/evaluate",
			body:       EvaluateRequest{BrandID: "qcorpeu", SessionID: "s"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "qualifies on property",
			url:        "/v1/intercepts/SI_test/evaluate",
			body:       EvaluateRequest{BrandID: "qcorpeu", ProjectID: "ZN_1", SessionID: "s", Properties: map[string]string{"test": "sdkTest"}},
			wantStatus: http.StatusOK,
			wantPassed: true,
			wantReason: engine.ReasonQualified,
		},
		{
			name:       "does not qualify",
			url:        "/v1/intercepts/SI_test/evaluate",
			body:       EvaluateRequest{BrandID: "qcorpeu", ProjectID: "ZN_1", SessionID: "s"},
			wantStatus: http.StatusOK,
			wantReason: engine.ReasonTargetingMismatch,
		},
		{
			name:       "device context feeds os dimension",
			url:        "/v1/intercepts/SI_linux/evaluate",
			body:       EvaluateRequest{BrandID: "qcorpeu", ProjectID: "ZN_1", SessionID: "s", Context: DeviceContext{OS: "linux"}},
			wantStatus: http.StatusOK,
			wantPassed: true,
			wantReason: engine.ReasonQualified,
		},
		{
			name:       "unknown intercept",
			url:        "/v1/intercepts/SI_nope/evaluate",
			body:       EvaluateRequest{BrandID: "qcorpeu", ProjectID: "ZN_1", SessionID: "s"},
			wantStatus: http.StatusOK,
			wantReason: engine.ReasonNotFound,
		},
	}

	h, _ := newTestHandler(t)
	r := Router(h)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, tt.url, tt.body)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var d engine.Decision
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
			assert.Equal(t, tt.wantPassed, d.Passed)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}

func TestImpression_StartsRepeatWindow(t *testing.T) {
	h, _ := newTestHandler(t)
	r := Router(h)
	eval := EvaluateRequest{BrandID: "qcorpeu", ProjectID: "ZN_1", SessionID: "s1", Properties: map[string]string{"test": "sdkTest"}}

	var d engine.Decision
	w := do(t, r, http.MethodPost, "/v1/intercepts/SI_test/evaluate", eval)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	require.True(t, d.Passed)

	w = do(t, r, http.MethodPost, "/v1/intercepts/SI_test/impressions", ImpressionRequest{BrandID: "qcorpeu", ProjectID: "ZN_1", SessionID: "s1"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodPost, "/v1/intercepts/SI_test/evaluate", eval)
	d = engine.Decision{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.False(t, d.Passed)
	assert.Equal(t, engine.ReasonRecentlyDisplayed, d.Reason)
	assert.Nil(t, d.Creative)

	eval.SessionID = "s2"
	w = do(t, r, http.MethodPost, "/v1/intercepts/SI_test/evaluate", eval)
	d = engine.Decision{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.True(t, d.Passed, "other sessions still qualify")
}

func TestImpression_Validation(t *testing.T) {
	h, _ := newTestHandler(t)
	r := Router(h)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/v1/intercepts/SI_test/impressions", "nope").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/v1/intercepts/SI_test/impressions", ImpressionRequest{BrandID: "qcorpeu"}).Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/v1/intercepts/SI_nope/impressions",
		ImpressionRequest{BrandID: "qcorpeu", ProjectID: "ZN_1", SessionID: "s"}).Code)
}

func TestEvaluate_FrequencyStoreDownFailsOpen(t *testing.T) {
	h, mr := newTestHandler(t)
	mr.Close()

	w := do(t, Router(h), http.MethodPost, "/v1/intercepts/SI_test/evaluate",
		EvaluateRequest{BrandID: "qcorpeu", ProjectID: "ZN_1", SessionID: "s", Properties: map[string]string{"test": "sdkTest"}})
	var d engine.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.True(t, d.Passed)
}

func TestEvaluateProject(t *testing.T) {
	h, _ := newTestHandler(t)
	h.Freq = nil
	r := Router(h)

	w := do(t, r, http.MethodPost, "/v1/brands/qcorpeu/projects/ZN_1/evaluate",
		EvaluateRequest{SessionID: "s", Properties: map[string]string{"test": "sdkTest"}, Context: DeviceContext{OS: "darwin"}})
	require.Equal(t, http.StatusOK, w.Code)

	var out ProjectEvaluation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out.Results, 2)
	assert.True(t, out.Results["SI_test"].Passed)
	assert.False(t, out.Results["SI_linux"].Passed)

	w = do(t, r, http.MethodPost, "/v1/brands/qcorpeu/projects/ZN_x/evaluate", EvaluateRequest{SessionID: "s"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t)
	ts := httptest.NewServer(Router(h))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
