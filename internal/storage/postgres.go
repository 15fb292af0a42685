package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"intercept-sandbox/internal/config"
)

type Store struct {
	pool *pgxpool.Pool
}

type ProjectRow struct {
	BrandID string `yaml:"brand_id"`
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Status  string `yaml:"status"`
}

type InterceptRow struct {
	ID                  string
	BrandID             string
	ProjectID           string
	Name                string
	Status              string
	SamplePercent       int
	RepeatWindowSeconds int
	CreativeType        string
	Headline            string
	Body                string
	ActionText          string
	DismissText         string
	SurveyURL           string
	Rules               []RuleRow
}

type RuleRow struct {
	Dimension   string   `yaml:"dimension"`
	IsInclusion bool     `yaml:"include"`
	Values      []string `yaml:"values"`
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	dsn := cfg.DSN()
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// LoadActiveProjects loads every project with status ACTIVE.
func (s *Store) LoadActiveProjects(ctx context.Context) ([]ProjectRow, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT brand_id, id, name, status
		FROM projects
		WHERE status = 'ACTIVE'
		ORDER BY brand_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectRow
	for rows.Next() {
		var p ProjectRow
		if err := rows.Scan(&p.BrandID, &p.ID, &p.Name, &p.Status); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// joinedRow is one line of the intercepts x targeting_rules LEFT JOIN.
type joinedRow struct {
	intercept InterceptRow
	dim       sql.NullString
	typ       sql.NullString
	val       sql.NullString
}

// LoadActiveIntercepts loads all active intercepts + their rules
func (s *Store) LoadActiveIntercepts(ctx context.Context) ([]InterceptRow, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.brand_id, i.project_id, i.name, i.status,
		       i.sample_percent, i.repeat_window_seconds,
		       i.creative_type, i.headline, i.body, i.action_text, i.dismiss_text, i.survey_url,
		       r.dimension, r.type, r.value
		FROM intercepts i
		LEFT JOIN targeting_rules r ON r.intercept_id = i.id
		WHERE i.status = 'ACTIVE'
		ORDER BY i.id
	`)
	if err != nil {
		return nil, fmt.Errorf("query intercepts: %w", err)
	}
	defer rows.Close()

	var joined []joinedRow
	for rows.Next() {
		var j joinedRow
		ic := &j.intercept
		if err := rows.Scan(&ic.ID, &ic.BrandID, &ic.ProjectID, &ic.Name, &ic.Status,
			&ic.SamplePercent, &ic.RepeatWindowSeconds,
			&ic.CreativeType, &ic.Headline, &ic.Body, &ic.ActionText, &ic.DismissText, &ic.SurveyURL,
			&j.dim, &j.typ, &j.val); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		joined = append(joined, j)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return foldRules(joined), nil
}

// foldRules collapses the join back into one row per intercept. Each
// targeting_rules line carries a single value; lines sharing a dimension and
// type are merged into one rule.
func foldRules(joined []joinedRow) []InterceptRow {
	intercepts := map[string]*InterceptRow{}
	for _, j := range joined {
		ic, ok := intercepts[j.intercept.ID]
		if !ok {
			c := j.intercept
			c.Rules = nil
			ic = &c
			intercepts[c.ID] = ic
		}
		if !(j.dim.Valid && j.typ.Valid && j.val.Valid) {
			continue
		}
		inc := j.typ.String == "INCLUDE"
		merged := false
		for i := range ic.Rules {
			if ic.Rules[i].Dimension == j.dim.String && ic.Rules[i].IsInclusion == inc {
				ic.Rules[i].Values = append(ic.Rules[i].Values, j.val.String)
				merged = true
				break
			}
		}
		if !merged {
			ic.Rules = append(ic.Rules, RuleRow{
				Dimension:   j.dim.String,
				IsInclusion: inc,
				Values:      []string{j.val.String},
			})
		}
	}

	// flatten map → slice
	out := make([]InterceptRow, 0, len(intercepts))
	for _, ic := range intercepts {
		out = append(out, *ic)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func (s *Store) ListenChannel() string {
	return "intercept_change"
}

func (s *Store) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}
