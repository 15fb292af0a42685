package storage

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Projects []seedProject `yaml:"projects"`
}

type seedProject struct {
	ProjectRow `yaml:",inline"`
	Intercepts []seedIntercept `yaml:"intercepts"`
}

type seedIntercept struct {
	ID            string        `yaml:"id"`
	Name          string        `yaml:"name"`
	Status        string        `yaml:"status"`
	SamplePercent *int          `yaml:"sample_percent"`
	RepeatWindow  time.Duration `yaml:"repeat_window"`
	Creative      struct {
		Type        string `yaml:"type"`
		Headline    string `yaml:"headline"`
		Body        string `yaml:"body"`
		ActionText  string `yaml:"action_text"`
		DismissText string `yaml:"dismiss_text"`
		SurveyURL   string `yaml:"survey_url"`
	} `yaml:"creative"`
	Rules []RuleRow `yaml:"rules"`
}

// LoadSeed reads a YAML catalogue into a Memory source. Missing statuses
// default to ACTIVE and a missing sample_percent to 100.
func LoadSeed(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file %s: %w", path, err)
	}
	defer f.Close()

	var sf seedFile
	if err := yaml.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}

	var projects []ProjectRow
	var intercepts []InterceptRow
	for _, p := range sf.Projects {
		if p.ID == "" || p.BrandID == "" {
			return nil, fmt.Errorf("seed file %s: project needs brand_id and id", path)
		}
		pr := p.ProjectRow
		if pr.Status == "" {
			pr.Status = "ACTIVE"
		}
		projects = append(projects, pr)

		for _, si := range p.Intercepts {
			if si.ID == "" {
				return nil, fmt.Errorf("seed file %s: intercept in project %s has no id", path, p.ID)
			}
			row := InterceptRow{
				ID:                  si.ID,
				BrandID:             pr.BrandID,
				ProjectID:           pr.ID,
				Name:                si.Name,
				Status:              si.Status,
				SamplePercent:       100,
				RepeatWindowSeconds: int(si.RepeatWindow / time.Second),
				CreativeType:        si.Creative.Type,
				Headline:            si.Creative.Headline,
				Body:                si.Creative.Body,
				ActionText:          si.Creative.ActionText,
				DismissText:         si.Creative.DismissText,
				SurveyURL:           si.Creative.SurveyURL,
				Rules:               si.Rules,
			}
			if row.Status == "" {
				row.Status = "ACTIVE"
			}
			if si.SamplePercent != nil {
				row.SamplePercent = *si.SamplePercent
			}
			intercepts = append(intercepts, row)
		}
	}

	m := NewMemory()
	m.Update(projects, intercepts)
	return m, nil
}
