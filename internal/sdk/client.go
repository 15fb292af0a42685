// Package sdk is a client for the intercept service. It mirrors the call
// contract of hosted survey SDKs: initialise a project, set properties,
// evaluate an intercept asynchronously and display it on a host view.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNotInitialized  = errors.New("sdk not initialized")
)

// StatusError is an unexpected HTTP status from the intercept service.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

// Host is a view an intercept can be rendered on.
type Host interface {
	Present(interceptID string, c Creative)
}

// Device describes where the SDK runs; sent as the os and locale dimensions.
type Device struct {
	OS     string `json:"os"`
	Locale string `json:"locale"`
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l zerolog.Logger) Option { return func(c *Client) { c.log = l } }

func WithSessionID(id string) Option { return func(c *Client) { c.sessionID = id } }

func WithDevice(d Device) Option { return func(c *Client) { c.device = d } }

type Client struct {
	endpoint  string
	http      *http.Client
	log       zerolog.Logger
	sessionID string
	device    Device
	props     *Properties

	mu      sync.RWMutex
	project *Project
	passed  map[string]TargetingResult // last passing result per intercept

	wg sync.WaitGroup
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		http:      &http.Client{Timeout: 5 * time.Second},
		log:       log.Logger,
		sessionID: uuid.NewString(),
		device:    Device{OS: runtime.GOOS, Locale: localeFromEnv()},
		props:     newProperties(),
		passed:    map[string]TargetingResult{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) Properties() *Properties { return c.props }

// Project returns the initialised project.
func (c *Client) Project() (Project, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.project == nil {
		return Project{}, false
	}
	return *c.project, true
}

// InitializeProject binds the client to brandID/projectID. It blocks until
// the service confirms the project exists. A failure leaves the client
// uninitialised.
func (c *Client) InitializeProject(ctx context.Context, brandID, projectID string) error {
	var p Project
	path := fmt.Sprintf("/v1/brands/%s/projects/%s", url.PathEscape(brandID), url.PathEscape(projectID))
	err := c.do(ctx, http.MethodGet, path, nil, &p)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.passed = map[string]TargetingResult{}
	if err != nil {
		c.project = nil
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return fmt.Errorf("%w: %s/%s", ErrProjectNotFound, brandID, projectID)
		}
		return fmt.Errorf("initialize project: %w", err)
	}
	c.project = &p
	c.log.Debug().Str("brand_id", brandID).Str("project_id", projectID).Strs("intercepts", p.Intercepts).Msg("sdk project loaded")
	return nil
}

// EvaluateIntercept returns immediately; cb is invoked exactly once from a
// background goroutine with the outcome.
func (c *Client) EvaluateIntercept(ctx context.Context, interceptID string, cb func(TargetingResult)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := c.evaluate(ctx, interceptID)
		if res.Passed() {
			c.mu.Lock()
			c.passed[interceptID] = res
			c.mu.Unlock()
		}
		cb(res)
	}()
}

func (c *Client) evaluate(ctx context.Context, interceptID string) TargetingResult {
	p, ok := c.Project()
	if !ok {
		return failedResult(interceptID, ErrNotInitialized)
	}
	var d decision
	path := "/v1/intercepts/" + url.PathEscape(interceptID) + "/evaluate"
	if err := c.do(ctx, http.MethodPost, path, c.evaluateBody(p, true), &d); err != nil {
		return failedResult(interceptID, fmt.Errorf("evaluate intercept: %w", err))
	}
	return d.result()
}

// EvaluateProject evaluates every intercept of the project; cb receives the
// results keyed by intercept id.
func (c *Client) EvaluateProject(ctx context.Context, cb func(map[string]TargetingResult, error)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		p, ok := c.Project()
		if !ok {
			cb(nil, ErrNotInitialized)
			return
		}
		var out struct {
			Results map[string]decision `json:"results"`
		}
		path := fmt.Sprintf("/v1/brands/%s/projects/%s/evaluate", url.PathEscape(p.BrandID), url.PathEscape(p.ID))
		if err := c.do(ctx, http.MethodPost, path, c.evaluateBody(p, false), &out); err != nil {
			cb(nil, fmt.Errorf("evaluate project: %w", err))
			return
		}
		results := make(map[string]TargetingResult, len(out.Results))
		c.mu.Lock()
		for id, d := range out.Results {
			results[id] = d.result()
			if d.Passed {
				c.passed[id] = results[id]
			}
		}
		c.mu.Unlock()
		cb(results, nil)
	}()
}

// DisplayIntercept renders the last passing result for interceptID on host
// and records the impression in the background.
func (c *Client) DisplayIntercept(ctx context.Context, interceptID string, host Host) {
	c.mu.RLock()
	res, ok := c.passed[interceptID]
	p := c.project
	c.mu.RUnlock()
	if !ok || res.Creative == nil || p == nil {
		c.log.Warn().Str("intercept_id", interceptID).Msg("display requested without a passing evaluation")
		return
	}
	host.Present(interceptID, *res.Creative)

	body := map[string]string{"brand_id": p.BrandID, "project_id": p.ID, "session_id": c.sessionID}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		path := "/v1/intercepts/" + url.PathEscape(interceptID) + "/impressions"
		if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
			c.log.Warn().Err(err).Str("intercept_id", interceptID).Msg("record impression")
		}
	}()
}

// Wait blocks until background evaluations and impressions finish.
func (c *Client) Wait() { c.wg.Wait() }

func (c *Client) evaluateBody(p Project, withProject bool) map[string]any {
	body := map[string]any{
		"session_id": c.sessionID,
		"properties": c.props.All(),
		"context":    c.device,
	}
	if withProject {
		body["brand_id"] = p.BrandID
		body["project_id"] = p.ID
	}
	return body
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Op: method + " " + path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// localeFromEnv turns LANG=en_US.UTF-8 into en_US.
func localeFromEnv() string {
	for _, k := range []string{"LC_ALL", "LANG"} {
		v := os.Getenv(k)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		return v
	}
	return ""
}
