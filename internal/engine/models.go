package engine

import "time"

// Reasons reported on a Decision.
const (
	ReasonQualified         = "qualified"
	ReasonNotFound          = "not_found"
	ReasonInactive          = "inactive"
	ReasonTargetingMismatch = "targeting_mismatch"
	ReasonSampledOut        = "sampled_out"
	ReasonRecentlyDisplayed = "recently_displayed"
)

const StatusActive = "ACTIVE"

// Built-in request dimensions; every other dimension names an SDK property.
const (
	DimOS     = "os"
	DimLocale = "locale"
)

type Project struct {
	BrandID string `json:"brand_id"`
	ID      string `json:"project_id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
}

// API-facing creative rendered by the SDK host view.
type Creative struct {
	Type        string `json:"type"`
	Headline    string `json:"headline"`
	Body        string `json:"body,omitempty"`
	ActionText  string `json:"action_text,omitempty"`
	DismissText string `json:"dismiss_text,omitempty"`
	SurveyURL   string `json:"survey_url,omitempty"`
}

// Generic rule for one dimension
// Dimension: "os" | "locale" | any property key
type Rule struct {
	Dimension   string
	IsInclusion bool
	Values      []string // canonicalized at snapshot time
}

type Intercept struct {
	ID            string
	BrandID       string
	ProjectID     string
	Name          string
	Status        string // "ACTIVE" | "INACTIVE"
	SamplePercent int
	RepeatWindow  time.Duration
	Creative      Creative
	Rules         []Rule
}

// Request is one evaluation from an SDK session.
type Request struct {
	BrandID     string
	ProjectID   string
	InterceptID string // empty for project-wide matching
	SessionID   string
	Attributes  map[string]string // properties plus os/locale, keys lower-cased at evaluation
}

type Decision struct {
	InterceptID  string        `json:"intercept_id"`
	Passed       bool          `json:"passed"`
	Reason       string        `json:"reason"`
	Creative     *Creative     `json:"creative,omitempty"`
	RepeatWindow time.Duration `json:"-"`
}
