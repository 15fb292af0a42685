package sdk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intercept-sandbox/internal/api"
	"intercept-sandbox/internal/engine"
	"intercept-sandbox/internal/frequency"
	"intercept-sandbox/internal/storage"
)

const (
	brandID     = "qcorpeu"
	projectID   = "ZN_AjrGvOvcxpMpjwJ"
	interceptID = "SI_bQTjH716jE5OOCq"
)

func newService(t *testing.T) *httptest.Server {
	t.Helper()
	m := storage.NewMemory()
	m.Update(
		[]storage.ProjectRow{{BrandID: brandID, ID: projectID, Name: "Sandbox", Status: "ACTIVE"}},
		[]storage.InterceptRow{
			{
				ID: interceptID, BrandID: brandID, ProjectID: projectID, Status: "ACTIVE", SamplePercent: 100,
				RepeatWindowSeconds: 600, Headline: "How are we doing?", SurveyURL: "https://survey.test/s",
				Rules: []storage.RuleRow{{Dimension: "test", IsInclusion: true, Values: []string{"sdkTest"}}},
			},
			{
				ID: "SI_plan9", BrandID: brandID, ProjectID: projectID, Status: "ACTIVE", SamplePercent: 100,
				Rules: []storage.RuleRow{{Dimension: "os", IsInclusion: true, Values: []string{"plan9"}}},
			},
		},
	)
	eng := engine.NewEngine()
	require.NoError(t, eng.BuildSnapshot(context.Background(), m))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	freq := &frequency.Redis{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}

	ts := httptest.NewServer(api.Router(api.NewInterceptHandler(eng, freq)))
	t.Cleanup(ts.Close)
	return ts
}

type recordingHost struct {
	mu    sync.Mutex
	shown []string
	last  Creative
}

func (h *recordingHost) Present(id string, c Creative) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shown = append(h.shown, id)
	h.last = c
}

func evaluateSync(t *testing.T, c *Client, id string) TargetingResult {
	t.Helper()
	ch := make(chan TargetingResult, 1)
	c.EvaluateIntercept(context.Background(), id, func(r TargetingResult) { ch <- r })
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("evaluation callback never fired")
		return TargetingResult{}
	}
}

func TestInitializeProject(t *testing.T) {
	ts := newService(t)
	c := New(ts.URL, WithDevice(Device{OS: "linux"}))

	err := c.InitializeProject(context.Background(), brandID, "ZN_missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProjectNotFound))
	_, ok := c.Project()
	assert.False(t, ok)

	// recovers without a new client
	require.NoError(t, c.InitializeProject(context.Background(), brandID, projectID))
	p, ok := c.Project()
	require.True(t, ok)
	assert.Equal(t, "Sandbox", p.Name)
	assert.ElementsMatch(t, []string{interceptID, "SI_plan9"}, p.Intercepts)
}

func TestInitializeProject_Unreachable(t *testing.T) {
	ts := newService(t)
	url := ts.URL
	ts.Close()

	err := New(url).InitializeProject(context.Background(), brandID, projectID)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrProjectNotFound))
}

func TestEvaluateIntercept_BeforeInitialize(t *testing.T) {
	ts := newService(t)
	c := New(ts.URL)

	r := evaluateSync(t, c, interceptID)
	assert.False(t, r.Passed())
	assert.True(t, errors.Is(r.Err(), ErrNotInitialized))
}

func TestEvaluateAndDisplay(t *testing.T) {
	ts := newService(t)
	c := New(ts.URL, WithDevice(Device{OS: "linux", Locale: "en_US"}))
	require.NoError(t, c.InitializeProject(context.Background(), brandID, projectID))

	r := evaluateSync(t, c, interceptID)
	assert.False(t, r.Passed(), "targeting needs the test property")
	assert.Equal(t, engine.ReasonTargetingMismatch, r.Reason)

	c.Properties().SetString("test", "sdkTest")
	r = evaluateSync(t, c, interceptID)
	require.True(t, r.Passed())
	require.NoError(t, r.Err())
	assert.Equal(t, "How are we doing?", r.Creative.Headline)

	host := &recordingHost{}
	c.DisplayIntercept(context.Background(), interceptID, host)
	c.Wait()
	assert.Equal(t, []string{interceptID}, host.shown)
	assert.Equal(t, "https://survey.test/s", host.last.SurveyURL)

	// impression opened the repeat window
	r = evaluateSync(t, c, interceptID)
	assert.False(t, r.Passed())
	assert.Equal(t, engine.ReasonRecentlyDisplayed, r.Reason)
}

func TestDisplayIntercept_WithoutPassingResult(t *testing.T) {
	ts := newService(t)
	c := New(ts.URL)
	require.NoError(t, c.InitializeProject(context.Background(), brandID, projectID))

	host := &recordingHost{}
	c.DisplayIntercept(context.Background(), interceptID, host)
	c.Wait()
	assert.Empty(t, host.shown)
}

func TestEvaluateIntercept_ServiceError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"brand_id":"b","project_id":"p"}`))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := New(ts.URL)
	require.NoError(t, c.InitializeProject(context.Background(), "b", "p"))

	r := evaluateSync(t, c, "SI_x")
	assert.False(t, r.Passed())
	var se *StatusError
	require.True(t, errors.As(r.Err(), &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}

func TestEvaluateProject(t *testing.T) {
	ts := newService(t)
	c := New(ts.URL, WithDevice(Device{OS: "linux"}))

	errCh := make(chan error, 1)
	c.EvaluateProject(context.Background(), func(_ map[string]TargetingResult, err error) { errCh <- err })
	assert.True(t, errors.Is(<-errCh, ErrNotInitialized))

	require.NoError(t, c.InitializeProject(context.Background(), brandID, projectID))
	c.Properties().SetString("test", "sdkTest")

	ch := make(chan map[string]TargetingResult, 1)
	c.EvaluateProject(context.Background(), func(res map[string]TargetingResult, err error) {
		assert.NoError(t, err)
		ch <- res
	})
	res := <-ch
	require.Len(t, res, 2)
	assert.True(t, res[interceptID].Passed())
	assert.False(t, res["SI_plan9"].Passed())

	// project evaluation also primes display
	host := &recordingHost{}
	c.DisplayIntercept(context.Background(), interceptID, host)
	c.Wait()
	assert.Equal(t, []string{interceptID}, host.shown)
}

func TestProperties(t *testing.T) {
	p := newProperties()
	p.SetString("test", "sdkTest")
	p.SetNumber("visits", 3)
	p.SetNumber("ratio", 0.25)

	v, ok := p.Get("test")
	assert.True(t, ok)
	assert.Equal(t, "sdkTest", v)
	assert.Equal(t, map[string]string{"test": "sdkTest", "visits": "3", "ratio": "0.25"}, p.All())

	_, ok = p.Get("missing")
	assert.False(t, ok)
}

func TestLocaleFromEnv(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LANG", "de_DE.UTF-8")
	assert.Equal(t, "de_DE", localeFromEnv())

	t.Setenv("LANG", "C")
	assert.Equal(t, "", localeFromEnv())
}
