package sdk

import "fmt"

type Project struct {
	BrandID    string   `json:"brand_id"`
	ID         string   `json:"project_id"`
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Intercepts []string `json:"intercepts"`
}

// Creative is what a Host renders for a displayed intercept.
type Creative struct {
	Type        string `json:"type"`
	Headline    string `json:"headline"`
	Body        string `json:"body,omitempty"`
	ActionText  string `json:"action_text,omitempty"`
	DismissText string `json:"dismiss_text,omitempty"`
	SurveyURL   string `json:"survey_url,omitempty"`
}

// TargetingResult is the outcome of evaluating one intercept for this session.
type TargetingResult struct {
	InterceptID string
	Reason      string
	Creative    *Creative

	passed bool
	err    error
}

type decision struct {
	InterceptID string    `json:"intercept_id"`
	Passed      bool      `json:"passed"`
	Reason      string    `json:"reason"`
	Creative    *Creative `json:"creative,omitempty"`
}

func (d decision) result() TargetingResult {
	return TargetingResult{InterceptID: d.InterceptID, Reason: d.Reason, Creative: d.Creative, passed: d.Passed}
}

// NewTargetingResult builds a result outside of an evaluation, for hosts and
// fakes that stand in for the service.
func NewTargetingResult(interceptID string, passed bool, reason string, c *Creative) TargetingResult {
	return TargetingResult{InterceptID: interceptID, Reason: reason, Creative: c, passed: passed}
}

func failedResult(interceptID string, err error) TargetingResult {
	return TargetingResult{InterceptID: interceptID, Reason: "error", err: err}
}

// Passed reports whether the session qualifies for the intercept.
func (r TargetingResult) Passed() bool { return r.passed }

// Err is set when evaluation could not reach a decision.
func (r TargetingResult) Err() error { return r.err }

func (r TargetingResult) String() string {
	if r.err != nil {
		return fmt.Sprintf("TargetingResult{intercept=%s passed=false err=%v}", r.InterceptID, r.err)
	}
	return fmt.Sprintf("TargetingResult{intercept=%s passed=%t reason=%s}", r.InterceptID, r.passed, r.Reason)
}
