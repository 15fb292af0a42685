package engine

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"intercept-sandbox/internal/cache"
	"intercept-sandbox/internal/storage"
)

// Source supplies the active catalogue a snapshot is built from.
type Source interface {
	LoadActiveProjects(ctx context.Context) ([]storage.ProjectRow, error)
	LoadActiveIntercepts(ctx context.Context) ([]storage.InterceptRow, error)
}

type projectKey struct{ brand, project string }

// Indexes for fast candidate narrowing within one project
type indexes struct {
	Intercepts []Intercept // backing array; indexes reference this

	Inc      map[string]map[string][]int // dimension -> value -> intercepts including it
	Exc      map[string]map[string][]int // dimension -> value -> intercepts excluding it
	Agnostic map[string][]int            // dimension -> intercepts without an inclusion rule on it
}

type snapshot struct {
	projects   map[projectKey]Project
	idx        map[projectKey]indexes
	intercepts map[string]Intercept
}

// InterceptEngine exposes read-only, lock-free evaluation.
type InterceptEngine struct{ snap cache.Snapshot[snapshot] }

func NewEngine() *InterceptEngine { return &InterceptEngine{} }

// BuildSnapshot loads active projects and intercepts and builds inverted indexes.
func (e *InterceptEngine) BuildSnapshot(ctx context.Context, src Source) error {
	projects, err := src.LoadActiveProjects(ctx)
	if err != nil {
		return err
	}
	rows, err := src.LoadActiveIntercepts(ctx)
	if err != nil {
		return err
	}
	log.Debug().Int("projects", len(projects)).Int("intercepts", len(rows)).Msg("building snapshot")
	e.snap.Store(buildSnapshot(projects, rows))
	return nil
}

func buildSnapshot(projects []storage.ProjectRow, rows []storage.InterceptRow) snapshot {
	s := snapshot{
		projects:   map[projectKey]Project{},
		idx:        map[projectKey]indexes{},
		intercepts: map[string]Intercept{},
	}
	for _, p := range projects {
		k := projectKey{p.BrandID, p.ID}
		s.projects[k] = Project{BrandID: p.BrandID, ID: p.ID, Name: p.Name, Status: p.Status}
	}

	grouped := map[projectKey][]Intercept{}
	for _, r := range rows {
		ic := fromRow(r)
		k := projectKey{ic.BrandID, ic.ProjectID}
		if _, ok := s.projects[k]; !ok {
			continue // orphaned or belongs to an inactive project
		}
		s.intercepts[ic.ID] = ic
		grouped[k] = append(grouped[k], ic)
	}
	for k, ics := range grouped {
		slices.SortFunc(ics, func(a, b Intercept) int { return strings.Compare(a.ID, b.ID) })
		s.idx[k] = buildIndexes(ics)
	}
	return s
}

// Normalize & build rules
func fromRow(r storage.InterceptRow) Intercept {
	ic := Intercept{
		ID:            r.ID,
		BrandID:       r.BrandID,
		ProjectID:     r.ProjectID,
		Name:          r.Name,
		Status:        r.Status,
		SamplePercent: r.SamplePercent,
		RepeatWindow:  time.Duration(r.RepeatWindowSeconds) * time.Second,
		Creative: Creative{
			Type:        r.CreativeType,
			Headline:    r.Headline,
			Body:        r.Body,
			ActionText:  r.ActionText,
			DismissText: r.DismissText,
			SurveyURL:   r.SurveyURL,
		},
	}
	for _, rr := range r.Rules {
		vals := make([]string, len(rr.Values))
		for i, v := range rr.Values {
			vals[i] = canon(v)
		}
		ic.Rules = append(ic.Rules, Rule{
			Dimension:   canon(rr.Dimension),
			IsInclusion: rr.IsInclusion,
			Values:      vals,
		})
	}
	return ic
}

func buildIndexes(ics []Intercept) indexes {
	ix := indexes{
		Intercepts: ics,
		Inc:        map[string]map[string][]int{},
		Exc:        map[string]map[string][]int{},
		Agnostic:   map[string][]int{},
	}
	included := map[string]map[int]bool{}
	for i, ic := range ics {
		for _, r := range ic.Rules {
			m := ix.Inc
			if !r.IsInclusion {
				m = ix.Exc
			} else {
				if included[r.Dimension] == nil {
					included[r.Dimension] = map[int]bool{}
				}
				included[r.Dimension][i] = true
			}
			if m[r.Dimension] == nil {
				m[r.Dimension] = map[string][]int{}
			}
			for _, v := range r.Values {
				m[r.Dimension][v] = append(m[r.Dimension][v], i)
			}
		}
	}
	dims := map[string]struct{}{}
	for d := range ix.Inc {
		dims[d] = struct{}{}
	}
	for d := range ix.Exc {
		dims[d] = struct{}{}
	}
	for d := range dims {
		ix.Agnostic[d] = []int{}
		for i := range ics {
			if !included[d][i] {
				ix.Agnostic[d] = append(ix.Agnostic[d], i)
			}
		}
	}
	return ix
}

// Project returns the active project for brand/id.
func (e *InterceptEngine) Project(brandID, projectID string) (Project, bool) {
	s, _ := e.snap.Load()
	p, ok := s.projects[projectKey{brandID, projectID}]
	return p, ok
}

// Evaluate decides whether the session qualifies for req.InterceptID.
func (e *InterceptEngine) Evaluate(_ context.Context, req Request) Decision {
	s, _ := e.snap.Load()
	attrs := normalize(req.Attributes)

	ic, ok := s.intercepts[req.InterceptID]
	if !ok || ic.BrandID != req.BrandID || ic.ProjectID != req.ProjectID {
		return Decision{InterceptID: req.InterceptID, Reason: ReasonNotFound}
	}
	d := decide(ic, req.SessionID, attrs)
	log.Debug().Str("intercept_id", ic.ID).Bool("passed", d.Passed).Str("reason", d.Reason).Msg("evaluated intercept")
	return d
}

// MatchProject evaluates every intercept in the request's project.
func (e *InterceptEngine) MatchProject(_ context.Context, req Request) []Decision {
	s, _ := e.snap.Load()
	attrs := normalize(req.Attributes)

	ix, ok := s.idx[projectKey{req.BrandID, req.ProjectID}]
	if !ok {
		return nil
	}

	// start with ALL intercepts, then narrow down per constrained dimension
	cand := newSet(rangeIndices(len(ix.Intercepts)))
	for dim, agnostic := range ix.Agnostic {
		val := attrs[dim]
		cand = cand.intersect(newSet(ix.Inc[dim][val], agnostic))
		cand = cand.subtract(ix.Exc[dim][val])
	}

	out := make([]Decision, 0, len(ix.Intercepts))
	for i, ic := range ix.Intercepts {
		if _, ok := cand[i]; !ok {
			out = append(out, Decision{InterceptID: ic.ID, Reason: ReasonTargetingMismatch})
			continue
		}
		// final verification
		out = append(out, decide(ic, req.SessionID, attrs))
	}
	return out
}

func decide(ic Intercept, sessionID string, attrs map[string]string) Decision {
	d := Decision{InterceptID: ic.ID, RepeatWindow: ic.RepeatWindow}
	switch {
	case ic.Status != StatusActive:
		d.Reason = ReasonInactive
	case !matchesAll(ic.Rules, attrs):
		d.Reason = ReasonTargetingMismatch
	case !sampled(ic, sessionID):
		d.Reason = ReasonSampledOut
	default:
		creative := ic.Creative
		d.Passed = true
		d.Reason = ReasonQualified
		d.Creative = &creative
	}
	return d
}

func matchesAll(rules []Rule, attrs map[string]string) bool {
	for _, r := range rules {
		if !applyRule(r, attrs[r.Dimension]) {
			return false
		}
	}
	return true
}

func applyRule(r Rule, val string) bool {
	if len(r.Values) == 0 {
		return true
	}
	found := slices.Contains(r.Values, val)
	if r.IsInclusion {
		return found
	}
	return !found
}

// sampled places the session in a stable 0..99 bucket per intercept.
func sampled(ic Intercept, sessionID string) bool {
	if ic.SamplePercent >= 100 {
		return true
	}
	if ic.SamplePercent <= 0 {
		return false
	}
	return Bucket(sessionID, ic.ID) < ic.SamplePercent
}

// Bucket is the sampling bucket for a session and intercept.
func Bucket(sessionID, interceptID string) int {
	return int(xxhash.Sum64String(sessionID+":"+interceptID) % 100)
}

func canon(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func normalize(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[canon(k)] = canon(v)
	}
	return out
}

func rangeIndices(n int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = i
	}
	return out
}

type set map[int]struct{}

func newSet(lists ...[]int) set {
	s := set{}
	for _, sl := range lists {
		for _, v := range sl {
			s[v] = struct{}{}
		}
	}
	return s
}

func (s set) intersect(other set) set {
	res := set{}
	for k := range s {
		if _, ok := other[k]; ok {
			res[k] = struct{}{}
		}
	}
	return res
}

func (s set) subtract(sl []int) set {
	for _, v := range sl {
		delete(s, v)
	}
	return s
}

// Intercept returns the active intercept id within brand/project.
func (e *InterceptEngine) Intercept(brandID, projectID, id string) (Intercept, bool) {
	s, _ := e.snap.Load()
	ic, ok := s.intercepts[id]
	if !ok || ic.BrandID != brandID || ic.ProjectID != projectID {
		return Intercept{}, false
	}
	return ic, true
}

// InterceptIDs lists a project's intercepts in id order.
func (e *InterceptEngine) InterceptIDs(brandID, projectID string) []string {
	s, _ := e.snap.Load()
	ix := s.idx[projectKey{brandID, projectID}]
	out := make([]string, len(ix.Intercepts))
	for i, ic := range ix.Intercepts {
		out[i] = ic.ID
	}
	return out
}
